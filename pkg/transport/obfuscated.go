package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"
)

const preambleLen = 64

// Obfuscated wraps an inner codec in AES-256-CTR. The 64-byte preamble
// carries the keys: bytes 8..40 and 40..56 key and seed the client-to-server
// stream, the same 48 bytes reversed key the server-to-client stream, and
// the decrypted bytes 56..60 name the inner codec.
type Obfuscated struct {
	Codec
}

func (*Obfuscated) Kind() Kind { return KindObfuscated }

// Inner returns the wrapped codec kind.
func (o *Obfuscated) Inner() Kind { return o.Codec.Kind() }

func newCTR(key, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// streams returns the cipher streams for the side that reads with the
// forward keys (the server) and writes with the reversed ones.
func streams(preamble []byte) (forward, backward cipher.Stream, err error) {
	if forward, err = newCTR(preamble[8:40], preamble[40:56]); err != nil {
		return nil, nil, err
	}
	rev := reversed(preamble[8:56])
	if backward, err = newCTR(rev[:32], rev[32:48]); err != nil {
		return nil, nil, err
	}
	return forward, backward, nil
}

func newObfuscatedServer(r io.Reader, w io.Writer, preamble []byte, limits Limits) (*Obfuscated, error) {
	dec, enc, err := streams(preamble)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, preambleLen)
	dec.XORKeyStream(plain, preamble)

	sr := cipher.StreamReader{S: dec, R: r}
	sw := cipher.StreamWriter{S: enc, W: w}
	inner, err := innerCodec(binary.LittleEndian.Uint32(plain[56:60]), sr, sw, limits)
	if err != nil {
		return nil, err
	}
	return &Obfuscated{Codec: inner}, nil
}

func innerCodec(tag uint32, r io.Reader, w io.Writer, limits Limits) (Codec, error) {
	switch tag {
	case abridgedTag:
		return NewAbridged(r, w, limits), nil
	case intermediateMarker:
		return NewIntermediate(r, w, limits), nil
	case paddedMarker:
		return NewPaddedIntermediate(r, w, limits), nil
	}
	return nil, ErrInvalidTag
}

func tagFor(kind Kind) (uint32, error) {
	switch kind {
	case KindAbridged:
		return abridgedTag, nil
	case KindIntermediate:
		return intermediateMarker, nil
	case KindPaddedIntermediate:
		return paddedMarker, nil
	}
	return 0, ErrInvalidTag
}

// clientPreamble generates random preamble bytes that cannot be mistaken
// for another codec's marker.
func clientPreamble() ([]byte, error) {
	p := make([]byte, preambleLen)
	for {
		if _, err := rand.Read(p); err != nil {
			return nil, err
		}
		first := binary.LittleEndian.Uint32(p)
		switch {
		case p[0] == abridgedMarker,
			first == intermediateMarker,
			first == paddedMarker,
			first == 0x44414548, // HEAD
			first == 0x54534f50, // POST
			first == 0x20544547, // GET
			binary.LittleEndian.Uint32(p[4:8]) == 0:
			continue
		}
		return p, nil
	}
}

func dialObfuscated(inner Kind, rw io.ReadWriter, limits Limits) (*Obfuscated, error) {
	tag, err := tagFor(inner)
	if err != nil {
		return nil, err
	}
	p, err := clientPreamble()
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(p[56:60], tag)

	enc, dec, err := streams(p)
	if err != nil {
		return nil, err
	}
	encrypted := make([]byte, preambleLen)
	enc.XORKeyStream(encrypted, p)
	copy(encrypted[:56], p[:56])
	if _, err := rw.Write(encrypted); err != nil {
		return nil, err
	}

	sr := cipher.StreamReader{S: dec, R: rw}
	sw := cipher.StreamWriter{S: enc, W: rw}
	codec, err := innerCodec(tag, sr, sw, limits)
	if err != nil {
		return nil, err
	}
	setClient(codec)
	return &Obfuscated{Codec: codec}, nil
}
