package transport

import (
	"encoding/binary"
	"io"
)

const abridgedLongLength = 0x7f

// Abridged encodes the length in 4-byte words: one byte below 0x7f,
// otherwise 0x7f followed by a 3-byte little-endian word count.
type Abridged struct {
	r      io.Reader
	w      io.Writer
	limits Limits
	client bool
}

func NewAbridged(r io.Reader, w io.Writer, limits Limits) *Abridged {
	return &Abridged{r: r, w: w, limits: limits}
}

func (*Abridged) Kind() Kind { return KindAbridged }

func (a *Abridged) Recv() (Frame, error) {
	var first [1]byte
	if _, err := io.ReadFull(a.r, first[:]); err != nil {
		return Frame{}, err
	}
	quick := first[0]&0x80 != 0
	if quick && a.client {
		// Quick ack token: 4 bytes big-endian, MSB set.
		rest, err := readFull(a.r, 3)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Payload: append([]byte{first[0]}, rest...), QuickAck: true}, nil
	}
	words := int(first[0] & 0x7f)
	if words == abridgedLongLength {
		ext, err := readFull(a.r, 3)
		if err != nil {
			return Frame{}, err
		}
		words = int(ext[0]) | int(ext[1])<<8 | int(ext[2])<<16
	}
	n := words * 4
	if n > a.limits.MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	payload, err := readFull(a.r, n)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Payload: payload, QuickAck: quick}, nil
}

func (a *Abridged) Send(payload []byte) error {
	return a.send(payload, false)
}

func (a *Abridged) send(payload []byte, quickAck bool) error {
	if len(payload)%4 != 0 {
		return ErrUnaligned
	}
	if len(payload) > a.limits.MaxFrameSize {
		return ErrFrameTooLarge
	}
	words := len(payload) / 4
	buf := make([]byte, 0, len(payload)+4)
	if words < abridgedLongLength {
		b := byte(words)
		if quickAck {
			b |= 0x80
		}
		buf = append(buf, b)
	} else {
		b := byte(abridgedLongLength)
		if quickAck {
			b |= 0x80
		}
		buf = append(buf, b, byte(words), byte(words>>8), byte(words>>16))
	}
	buf = append(buf, payload...)
	_, err := a.w.Write(buf)
	return err
}

func (a *Abridged) SendQuickAck(token uint32) error {
	_, err := a.w.Write(binary.BigEndian.AppendUint32(nil, token|quickAckBit))
	return err
}

func (a *Abridged) SendError(code int32) error {
	return a.Send(errorPayload(code))
}
