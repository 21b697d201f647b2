package transport

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

const fullOverhead = 12

// Full frames are length | seq_no | payload | crc32, where length covers the
// whole frame and crc32 (IEEE) covers everything before it. seq_no counts
// frames per direction starting at zero.
type Full struct {
	r       io.Reader
	w       io.Writer
	limits  Limits
	client  bool
	recvSeq int32
	sendSeq int32
}

func NewFull(r io.Reader, w io.Writer, limits Limits) *Full {
	return &Full{r: r, w: w, limits: limits}
}

func (*Full) Kind() Kind { return KindFull }

func (f *Full) Recv() (Frame, error) {
	head, err := readFull(f.r, 4)
	if err != nil {
		return Frame{}, err
	}
	v := binary.LittleEndian.Uint32(head)
	quick := v&quickAckBit != 0
	if quick && f.client {
		return Frame{Payload: head, QuickAck: true}, nil
	}
	total := int(v &^ quickAckBit)
	if total < fullOverhead {
		return Frame{}, ErrBadLength
	}
	if total-fullOverhead > f.limits.MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	rest, err := readFull(f.r, total-4)
	if err != nil {
		return Frame{}, err
	}
	body := rest[:len(rest)-4]
	sum := crc32.NewIEEE()
	sum.Write(head)
	sum.Write(body)
	if sum.Sum32() != binary.LittleEndian.Uint32(rest[len(rest)-4:]) {
		return Frame{}, ErrBadChecksum
	}
	if seq := int32(binary.LittleEndian.Uint32(body)); seq != f.recvSeq {
		return Frame{}, ErrBadSequence
	}
	f.recvSeq++
	return Frame{Payload: body[4:], QuickAck: quick}, nil
}

func (f *Full) Send(payload []byte) error {
	if len(payload) > f.limits.MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 0, len(payload)+fullOverhead)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)+fullOverhead))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(f.sendSeq))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	if _, err := f.w.Write(buf); err != nil {
		return err
	}
	f.sendSeq++
	return nil
}

func (f *Full) SendQuickAck(token uint32) error {
	_, err := f.w.Write(binary.LittleEndian.AppendUint32(nil, token|quickAckBit))
	return err
}

func (f *Full) SendError(code int32) error {
	return f.Send(errorPayload(code))
}
