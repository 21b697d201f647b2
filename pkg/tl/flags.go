package tl

// Flags is a 32-bit presence word for optional fields.
type Flags uint32

// Has reports whether bit is set.
func (f Flags) Has(bit int) bool {
	return f&(1<<uint(bit)) != 0
}

// Set sets bit.
func (f *Flags) Set(bit int) {
	*f |= 1 << uint(bit)
}

// Unset clears bit.
func (f *Flags) Unset(bit int) {
	*f &^= 1 << uint(bit)
}
