package tl

// Vector is a boxed vector of objects. It is what a bare Vector<T> of
// boxed types decodes to.
type Vector struct {
	Items []Object
}

func (*Vector) CRC() uint32 { return CrcVector }

func (v *Vector) Encode(e *Encoder) {
	e.PutObjectVector(v.Items)
}

func (v *Vector) Decode(d *Decoder) error {
	n, err := d.Int32()
	if err != nil {
		return err
	}
	if n < 0 || int(n)*WordLen > d.Len() {
		return ErrVectorTooLarge
	}
	v.Items = make([]Object, n)
	for i := range v.Items {
		if v.Items[i], err = d.Object(); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register(func() Object { return new(Vector) })
}
