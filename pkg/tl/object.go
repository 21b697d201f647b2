package tl

import "fmt"

// Object is a boxed TL value. Encode writes the constructor ID followed by
// the fields; Decode reads the fields only, the ID having been consumed by
// the caller.
type Object interface {
	CRC() uint32
	Encode(e *Encoder)
	Decode(d *Decoder) error
}

var registry = map[uint32]func() Object{}

// Register adds a constructor factory. It is called from init functions
// only; the registry is read-only afterwards.
func Register(ctors ...func() Object) {
	for _, ctor := range ctors {
		id := ctor().CRC()
		if _, dup := registry[id]; dup {
			panic(fmt.Sprintf("tl: constructor 0x%08x registered twice", id))
		}
		registry[id] = ctor
	}
}

// New returns a fresh zero value for constructor id.
func New(id uint32) (Object, bool) {
	ctor, ok := registry[id]
	if !ok {
		return nil, false
	}
	return ctor(), true
}
