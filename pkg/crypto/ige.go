package crypto

import (
	"crypto/aes"
	"errors"
)

var ErrBlockSize = errors.New("crypto: data is not a multiple of the block size")

// EncryptIGE encrypts data with AES-256 in IGE mode. iv is 32 bytes: the
// previous ciphertext block followed by the previous plaintext block.
func EncryptIGE(key, iv, data []byte) ([]byte, error) {
	return ige(key, iv, data, true)
}

// DecryptIGE is the inverse of EncryptIGE.
func DecryptIGE(key, iv, data []byte) ([]byte, error) {
	return ige(key, iv, data, false)
}

func ige(key, iv, data []byte, encrypt bool) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, ErrBlockSize
	}
	if len(iv) != 2*BlockSize {
		return nil, errors.New("crypto: IGE iv must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	var prevIn, prevOut [BlockSize]byte
	if encrypt {
		copy(prevOut[:], iv[:BlockSize])
		copy(prevIn[:], iv[BlockSize:])
	} else {
		copy(prevIn[:], iv[:BlockSize])
		copy(prevOut[:], iv[BlockSize:])
	}

	var tmp [BlockSize]byte
	for off := 0; off < len(data); off += BlockSize {
		in := data[off : off+BlockSize]
		dst := out[off : off+BlockSize]
		xor(tmp[:], in, prevOut[:])
		if encrypt {
			block.Encrypt(dst, tmp[:])
		} else {
			block.Decrypt(dst, tmp[:])
		}
		xor(dst, dst, prevIn[:])
		copy(prevIn[:], in)
		copy(prevOut[:], dst)
	}
	return out, nil
}

func xor(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
