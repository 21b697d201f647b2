package transport

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/big"
)

// Intermediate prefixes each frame with a 4-byte little-endian length. The
// padded variant appends 0-15 random bytes that the receiver leaves in the
// payload; the encrypted envelope carries its own length.
type Intermediate struct {
	r      io.Reader
	w      io.Writer
	limits Limits
	padded bool
	client bool
}

func NewIntermediate(r io.Reader, w io.Writer, limits Limits) *Intermediate {
	return &Intermediate{r: r, w: w, limits: limits}
}

func NewPaddedIntermediate(r io.Reader, w io.Writer, limits Limits) *Intermediate {
	return &Intermediate{r: r, w: w, limits: limits, padded: true}
}

func (i *Intermediate) Kind() Kind {
	if i.padded {
		return KindPaddedIntermediate
	}
	return KindIntermediate
}

func (i *Intermediate) Recv() (Frame, error) {
	head, err := readFull(i.r, 4)
	if err != nil {
		return Frame{}, err
	}
	v := binary.LittleEndian.Uint32(head)
	quick := v&quickAckBit != 0
	if quick && i.client {
		return Frame{Payload: head, QuickAck: true}, nil
	}
	n := int(v &^ quickAckBit)
	if n > i.limits.MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	payload, err := readFull(i.r, n)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Payload: payload, QuickAck: quick}, nil
}

func (i *Intermediate) Send(payload []byte) error {
	if len(payload) > i.limits.MaxFrameSize {
		return ErrFrameTooLarge
	}
	var pad []byte
	if i.padded {
		var err error
		if pad, err = randomPadding(); err != nil {
			return err
		}
	}
	buf := make([]byte, 0, 4+len(payload)+len(pad))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)+len(pad)))
	buf = append(buf, payload...)
	buf = append(buf, pad...)
	_, err := i.w.Write(buf)
	return err
}

func (i *Intermediate) SendQuickAck(token uint32) error {
	_, err := i.w.Write(binary.LittleEndian.AppendUint32(nil, token|quickAckBit))
	return err
}

func (i *Intermediate) SendError(code int32) error {
	buf := binary.LittleEndian.AppendUint32(nil, 4)
	_, err := i.w.Write(append(buf, errorPayload(code)...))
	return err
}

func randomPadding() ([]byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(16))
	if err != nil {
		return nil, err
	}
	pad := make([]byte, n.Int64())
	if _, err := rand.Read(pad); err != nil {
		return nil, err
	}
	return pad, nil
}
