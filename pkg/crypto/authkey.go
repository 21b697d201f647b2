package crypto

import (
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"time"
)

// AuthKeySize is the length of an MTProto auth key.
const AuthKeySize = 256

var ErrAuthKeySize = errors.New("crypto: auth key must be 256 bytes")

// KeyType distinguishes permanent keys from temporary ones.
type KeyType uint8

const (
	KeyPermanent KeyType = iota
	KeyTemporary
)

func (t KeyType) String() string {
	switch t {
	case KeyPermanent:
		return "perm"
	case KeyTemporary:
		return "temp"
	}
	return "unknown"
}

// AuthKey is a shared secret produced by the key exchange.
type AuthKey struct {
	ID        int64
	Key       [AuthKeySize]byte
	Type      KeyType
	ExpiresAt time.Time
}

func NewAuthKey(key []byte, typ KeyType, expiresAt time.Time) (*AuthKey, error) {
	if len(key) != AuthKeySize {
		return nil, ErrAuthKeySize
	}
	k := &AuthKey{ID: KeyID(key), Type: typ, ExpiresAt: expiresAt}
	copy(k.Key[:], key)
	return k, nil
}

// KeyID returns the 64 low-order bits of SHA1(key).
func KeyID(key []byte) int64 {
	sum := sha1.Sum(key)
	return int64(binary.LittleEndian.Uint64(sum[12:20]))
}

// Temporary reports whether the key is a temporary one.
func (k *AuthKey) Temporary() bool {
	return k.Type != KeyPermanent
}

// Expired reports whether a temporary key is past its expiry.
func (k *AuthKey) Expired(now time.Time) bool {
	return k.Temporary() && !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}
