package tl

import (
	"encoding/binary"
	"math"
)

// Decoder reads TL values from a byte slice. It never reads past the slice
// and reports ErrTruncated instead.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Len returns the number of unread bytes.
func (d *Decoder) Len() int { return len(d.buf) - d.pos }

// Remaining returns the unread bytes without consuming them.
func (d *Decoder) Remaining() []byte { return d.buf[d.pos:] }

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Len() < n {
		return nil, ErrTruncated
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// PeekUint32 returns the next word without consuming it.
func (d *Decoder) PeekUint32() (uint32, error) {
	if d.Len() < WordLen {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(d.buf[d.pos:]), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(WordLen)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(LongLen)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Double() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

func (d *Decoder) Int128() (v [16]byte, err error) {
	b, err := d.take(Int128Len)
	if err != nil {
		return v, err
	}
	copy(v[:], b)
	return v, nil
}

func (d *Decoder) Int256() (v [32]byte, err error) {
	b, err := d.take(Int256Len)
	if err != nil {
		return v, err
	}
	copy(v[:], b)
	return v, nil
}

func (d *Decoder) Flags() (Flags, error) {
	v, err := d.Uint32()
	return Flags(v), err
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	switch v {
	case CrcTrue:
		return true, nil
	case CrcFalse:
		return false, nil
	}
	return false, ErrInvalidBool
}

// Bytes reads a length-prefixed byte string. The returned slice is a copy.
func (d *Decoder) Bytes() ([]byte, error) {
	first, err := d.take(1)
	if err != nil {
		return nil, err
	}
	n, header := int(first[0]), 1
	switch {
	case n == LongLengthMarker:
		ext, err := d.take(3)
		if err != nil {
			return nil, err
		}
		n = int(ext[0]) | int(ext[1])<<8 | int(ext[2])<<16
		header = 4
		if n <= maxShortLength {
			return nil, ErrInvalidLength
		}
	case n > LongLengthMarker:
		return nil, ErrInvalidLength
	}
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	pad := (WordLen - (header+n)%WordLen) % WordLen
	if _, err := d.take(pad); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (d *Decoder) String() (string, error) {
	b, err := d.Bytes()
	return string(b), err
}

// Expect consumes a constructor ID and fails if it differs from id.
func (d *Decoder) Expect(id uint32) error {
	v, err := d.Uint32()
	if err != nil {
		return err
	}
	if v != id {
		return ErrUnexpectedType
	}
	return nil
}

// VectorHeader reads the vector constructor and element count. minElem is
// the smallest possible encoded element size and bounds the count against
// the remaining input.
func (d *Decoder) VectorHeader(minElem int) (int, error) {
	if err := d.Expect(CrcVector); err != nil {
		return 0, err
	}
	n, err := d.Int32()
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n)*minElem > d.Len() {
		return 0, ErrVectorTooLarge
	}
	return int(n), nil
}

func (d *Decoder) Int32Vector() ([]int32, error) {
	n, err := d.VectorHeader(WordLen)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		if out[i], err = d.Int32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Decoder) Int64Vector() ([]int64, error) {
	n, err := d.VectorHeader(LongLen)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		if out[i], err = d.Int64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Decoder) StringVector() ([]string, error) {
	n, err := d.VectorHeader(WordLen)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = d.String(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Object reads a boxed object through the registry. null decodes to nil.
func (d *Decoder) Object() (Object, error) {
	id, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if id == CrcNull {
		return nil, nil
	}
	o, ok := New(id)
	if !ok {
		return nil, &DecodeError{ID: id, Remaining: d.Remaining(), Err: ErrUnknownConstructor}
	}
	if err := o.Decode(d); err != nil {
		return nil, wrapDecode(id, d, err)
	}
	return o, nil
}

func (d *Decoder) ObjectVector() ([]Object, error) {
	n, err := d.VectorHeader(WordLen)
	if err != nil {
		return nil, err
	}
	out := make([]Object, n)
	for i := range out {
		if out[i], err = d.Object(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Decode reads exactly one boxed object from b.
func Decode(b []byte) (Object, error) {
	d := NewDecoder(b)
	o, err := d.Object()
	if err != nil {
		return nil, err
	}
	if d.Len() != 0 {
		var id uint32
		if o != nil {
			id = o.CRC()
		}
		return nil, &DecodeError{ID: id, Remaining: d.Remaining(), Err: ErrTrailingData}
	}
	return o, nil
}

// Constructor returns the leading constructor ID of an encoded object.
func Constructor(b []byte) (uint32, error) {
	return NewDecoder(b).PeekUint32()
}
