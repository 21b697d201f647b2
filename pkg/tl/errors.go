package tl

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated          = errors.New("tl: truncated data")
	ErrInvalidLength      = errors.New("tl: invalid length prefix")
	ErrInvalidBool        = errors.New("tl: invalid bool constructor")
	ErrUnknownConstructor = errors.New("tl: unknown constructor")
	ErrUnexpectedType     = errors.New("tl: unexpected constructor")
	ErrTrailingData       = errors.New("tl: trailing data after object")
	ErrVectorTooLarge     = errors.New("tl: vector count exceeds remaining data")
	ErrBytesTooLong       = errors.New("tl: byte string exceeds 16 MiB")
)

// DecodeError reports a failure to decode an object. ID is the constructor
// being decoded (or the unknown one), Remaining holds the bytes that were not
// consumed when the failure happened.
type DecodeError struct {
	ID        uint32
	Remaining []byte
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tl: decode 0x%08x: %v (%d bytes left)", e.ID, e.Err, len(e.Remaining))
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func wrapDecode(id uint32, d *Decoder, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{ID: id, Remaining: d.Remaining(), Err: err}
}
