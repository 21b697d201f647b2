package tl

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// maxUnpackedSize caps inflated gzip_packed payloads.
const maxUnpackedSize = 16 << 20

// Pack wraps o in gzip_packed.
func Pack(o Object) (*GzipPacked, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	raw, err := Marshal(o)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return &GzipPacked{Data: buf.Bytes()}, nil
}

// Unpack inflates and decodes the packed object.
func (g *GzipPacked) Unpack() (Object, error) {
	r, err := gzip.NewReader(bytes.NewReader(g.Data))
	if err != nil {
		return nil, fmt.Errorf("gzip open: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(io.LimitReader(r, maxUnpackedSize+1))
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	if len(raw) > maxUnpackedSize {
		return nil, fmt.Errorf("gzip: unpacked size exceeds %d bytes", maxUnpackedSize)
	}
	return Decode(raw)
}

// Unwrap returns the object inside gzip_packed, or o itself.
func Unwrap(o Object) (Object, error) {
	if g, ok := o.(*GzipPacked); ok {
		return g.Unpack()
	}
	return o, nil
}
