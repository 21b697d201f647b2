package transport

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Accept inspects the first bytes of a server-side stream and returns the
// matching codec. It blocks until enough bytes arrive to decide.
func Accept(rw io.ReadWriter, limits Limits) (Codec, error) {
	br := bufio.NewReader(rw)

	first, err := br.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == abridgedMarker {
		_, _ = br.Discard(1)
		return NewAbridged(br, rw, limits), nil
	}

	head, err := br.Peek(8)
	if err != nil {
		return nil, err
	}
	switch binary.LittleEndian.Uint32(head) {
	case intermediateMarker:
		_, _ = br.Discard(4)
		return NewIntermediate(br, rw, limits), nil
	case paddedMarker:
		_, _ = br.Discard(4)
		return NewPaddedIntermediate(br, rw, limits), nil
	}
	if binary.LittleEndian.Uint32(head[4:]) == 0 {
		return NewFull(br, rw, limits), nil
	}

	preamble, err := readFull(br, preambleLen)
	if err != nil {
		return nil, err
	}
	o, err := newObfuscatedServer(br, rw, preamble, limits)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Dial writes the connection preamble for kind and returns a client-side
// codec. Use DialObfuscated for the obfuscated wrapper.
func Dial(kind Kind, rw io.ReadWriter, limits Limits) (Codec, error) {
	var (
		marker []byte
		codec  Codec
	)
	switch kind {
	case KindAbridged:
		marker = []byte{abridgedMarker}
		codec = NewAbridged(rw, rw, limits)
	case KindIntermediate:
		marker = binary.LittleEndian.AppendUint32(nil, intermediateMarker)
		codec = NewIntermediate(rw, rw, limits)
	case KindPaddedIntermediate:
		marker = binary.LittleEndian.AppendUint32(nil, paddedMarker)
		codec = NewPaddedIntermediate(rw, rw, limits)
	case KindFull:
		codec = NewFull(rw, rw, limits)
	default:
		return nil, ErrUnknownMarker
	}
	if len(marker) > 0 {
		if _, err := rw.Write(marker); err != nil {
			return nil, err
		}
	}
	setClient(codec)
	return codec, nil
}

// DialObfuscated starts an obfuscated client connection around inner.
func DialObfuscated(inner Kind, rw io.ReadWriter, limits Limits) (Codec, error) {
	o, err := dialObfuscated(inner, rw, limits)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func setClient(c Codec) {
	switch c := c.(type) {
	case *Abridged:
		c.client = true
	case *Intermediate:
		c.client = true
	case *Full:
		c.client = true
	}
}
