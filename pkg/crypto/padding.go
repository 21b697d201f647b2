package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
)

var (
	ErrInvalidPadding = errors.New("crypto: invalid padding")
)

const (
	BlockSize = 16

	// MTProto 2.0 requires 12..1024 padding bytes.
	minPaddingV2 = 12
	maxPaddingV2 = 1024
)

// PaddingScheme selects how plaintext is padded to the AES block size.
type PaddingScheme int

const (
	// PaddingV2 adds 12-1024 random bytes, as MTProto 2.0 requires.
	PaddingV2 PaddingScheme = iota

	// PaddingV1 adds the 0-15 random bytes needed to reach a block boundary.
	PaddingV1
)

// AddPadding appends random padding to message and returns the padded
// buffer and the original length.
func AddPadding(message []byte, scheme PaddingScheme) ([]byte, int, error) {
	originalLen := len(message)

	var paddingLen int
	switch scheme {
	case PaddingV1:
		paddingLen = (BlockSize - originalLen%BlockSize) % BlockSize
	case PaddingV2:
		var extra [1]byte
		if _, err := rand.Read(extra[:]); err != nil {
			return nil, 0, fmt.Errorf("failed to generate random length: %w", err)
		}
		paddingLen = minPaddingV2 + (BlockSize-(originalLen+minPaddingV2)%BlockSize)%BlockSize
		// up to 15 extra blocks keeps the total under maxPaddingV2
		paddingLen += int(extra[0]%16) * BlockSize
	default:
		return nil, 0, fmt.Errorf("unknown padding scheme: %d", scheme)
	}

	padded := make([]byte, originalLen+paddingLen)
	copy(padded, message)
	if _, err := rand.Read(padded[originalLen:]); err != nil {
		return nil, 0, fmt.Errorf("failed to generate padding: %w", err)
	}
	return padded, originalLen, nil
}

// RemovePadding strips padding given the original length and checks that
// the padding length is legal for scheme.
func RemovePadding(padded []byte, originalLen int, scheme PaddingScheme) ([]byte, error) {
	if originalLen < 0 || originalLen > len(padded) {
		return nil, ErrInvalidPadding
	}
	paddingLen := len(padded) - originalLen
	switch scheme {
	case PaddingV2:
		if paddingLen < minPaddingV2 || paddingLen > maxPaddingV2 {
			return nil, ErrInvalidPadding
		}
	case PaddingV1:
		if paddingLen >= BlockSize {
			return nil, ErrInvalidPadding
		}
	}
	return padded[:originalLen], nil
}
