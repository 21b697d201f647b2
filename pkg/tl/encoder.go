package tl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder appends TL-encoded values to a growing buffer. The first value
// that cannot be represented is recorded in Err and leaves the buffer
// unchanged; later writes still append.
type Encoder struct {
	buf []byte
	err error
}

func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded buffer. The slice aliases the encoder's storage.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Len() int { return len(e.buf) }

// Err returns the first encoding failure, if any.
func (e *Encoder) Err() error { return e.err }

func (e *Encoder) PutRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) PutUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) PutInt32(v int32) {
	e.PutUint32(uint32(v))
}

func (e *Encoder) PutUint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) PutInt64(v int64) {
	e.PutUint64(uint64(v))
}

func (e *Encoder) PutDouble(v float64) {
	e.PutUint64(math.Float64bits(v))
}

func (e *Encoder) PutInt128(v [16]byte) {
	e.buf = append(e.buf, v[:]...)
}

func (e *Encoder) PutInt256(v [32]byte) {
	e.buf = append(e.buf, v[:]...)
}

func (e *Encoder) PutFlags(f Flags) {
	e.PutUint32(uint32(f))
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutUint32(CrcTrue)
	} else {
		e.PutUint32(CrcFalse)
	}
}

// PutBytes writes a length-prefixed byte string padded to a word boundary.
// Strings of 16 MiB or more cannot be represented and set ErrBytesTooLong.
func (e *Encoder) PutBytes(b []byte) {
	n := len(b)
	if n > maxBytesLength {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %d bytes", ErrBytesTooLong, n)
		}
		return
	}
	var header int
	if n <= maxShortLength {
		e.buf = append(e.buf, byte(n))
		header = 1
	} else {
		e.buf = append(e.buf, LongLengthMarker, byte(n), byte(n>>8), byte(n>>16))
		header = 4
	}
	e.buf = append(e.buf, b...)
	if pad := (WordLen - (header+n)%WordLen) % WordLen; pad > 0 {
		e.buf = append(e.buf, make([]byte, pad)...)
	}
}

func (e *Encoder) PutString(s string) {
	e.PutBytes([]byte(s))
}

func (e *Encoder) PutVectorHeader(n int) {
	e.PutUint32(CrcVector)
	e.PutInt32(int32(n))
}

func (e *Encoder) PutInt32Vector(v []int32) {
	e.PutVectorHeader(len(v))
	for _, x := range v {
		e.PutInt32(x)
	}
}

func (e *Encoder) PutInt64Vector(v []int64) {
	e.PutVectorHeader(len(v))
	for _, x := range v {
		e.PutInt64(x)
	}
}

func (e *Encoder) PutStringVector(v []string) {
	e.PutVectorHeader(len(v))
	for _, x := range v {
		e.PutString(x)
	}
}

// PutObject writes a boxed object. A nil object is written as null.
func (e *Encoder) PutObject(o Object) {
	if o == nil {
		e.PutUint32(CrcNull)
		return
	}
	o.Encode(e)
}

func (e *Encoder) PutObjectVector(items []Object) {
	e.PutVectorHeader(len(items))
	for _, o := range items {
		e.PutObject(o)
	}
}

// Encode serializes o into a new buffer. It returns nil when o holds a
// value TL cannot represent; callers encoding unbounded data use Marshal.
func Encode(o Object) []byte {
	b, _ := Marshal(o)
	return b
}

// Marshal encodes o, failing when it holds a value TL cannot represent.
func Marshal(o Object) ([]byte, error) {
	e := NewEncoder(64)
	e.PutObject(o)
	if err := e.Err(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
