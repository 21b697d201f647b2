// Package transport frames MTProto packets over a byte stream.
//
// A connection picks one codec when it starts, based on its first bytes:
// Abridged (0xef), Intermediate (0xeeeeeeee), Padded Intermediate
// (0xdddddddd), Full (no marker, zero seq_no at offset 4) or Obfuscated (a
// 64-byte AES-CTR preamble wrapping one of the first three).
package transport

import (
	"encoding/binary"
	"errors"
	"io"
)

// Kind identifies a framing strategy.
type Kind uint8

const (
	KindAbridged Kind = iota + 1
	KindIntermediate
	KindPaddedIntermediate
	KindFull
	KindObfuscated
)

func (k Kind) String() string {
	switch k {
	case KindAbridged:
		return "abridged"
	case KindIntermediate:
		return "intermediate"
	case KindPaddedIntermediate:
		return "padded_intermediate"
	case KindFull:
		return "full"
	case KindObfuscated:
		return "obfuscated"
	}
	return "unknown"
}

const (
	abridgedMarker     byte   = 0xef
	intermediateMarker uint32 = 0xeeeeeeee
	paddedMarker       uint32 = 0xdddddddd
	abridgedTag        uint32 = 0xefefefef

	quickAckBit uint32 = 0x80000000

	// CodeAuthKeyNotFound is sent when an auth_key_id cannot be resolved.
	CodeAuthKeyNotFound int32 = -404
)

var (
	ErrFrameTooLarge = errors.New("transport: frame too large")
	ErrUnaligned     = errors.New("transport: payload not word aligned")
	ErrBadChecksum   = errors.New("transport: crc32 mismatch")
	ErrBadSequence   = errors.New("transport: unexpected frame seq_no")
	ErrBadLength     = errors.New("transport: invalid frame length")
	ErrUnknownMarker = errors.New("transport: unrecognized connection preamble")
	ErrInvalidTag    = errors.New("transport: invalid obfuscated protocol tag")
)

// Frame is one received packet.
type Frame struct {
	Payload []byte
	// QuickAck is set when the sender asked for a quick acknowledgement, or,
	// on the client side, when the frame is itself a quick ack token.
	QuickAck bool
}

// Codec reads and writes whole frames. Recv and Send may run concurrently
// with each other but each must be called from one goroutine at a time.
type Codec interface {
	Kind() Kind
	// Recv blocks until a complete frame is available.
	Recv() (Frame, error)
	Send(payload []byte) error
	// SendQuickAck writes a quick acknowledgement token out of band.
	SendQuickAck(token uint32) error
	// SendError writes a transport error code such as -404.
	SendError(code int32) error
}

// Limits constrains frame sizes.
type Limits struct {
	MaxFrameSize int
}

func DefaultLimits() Limits {
	return Limits{MaxFrameSize: 16 << 20}
}

// ErrorCode reports the transport error carried by a 4-byte frame payload.
func ErrorCode(payload []byte) (int32, bool) {
	if len(payload) != 4 {
		return 0, false
	}
	code := int32(binary.LittleEndian.Uint32(payload))
	return code, code < 0
}

func errorPayload(code int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(code))
}

func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
