package crypto

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

var ErrSaltSecret = errors.New("crypto: salt secret must be 1-64 bytes")

// Salts derives server salts from a secret, an auth key id and a time
// bucket. Derivation is pure: any node sharing the secret computes the
// same salt for the same key and bucket.
type Salts struct {
	secret []byte
	window time.Duration
}

// SaltWindow is one salt together with its validity interval.
type SaltWindow struct {
	ValidSince time.Time
	ValidUntil time.Time
	Salt       int64
}

func NewSalts(secret []byte, window time.Duration) (*Salts, error) {
	if len(secret) == 0 || len(secret) > blake2b.Size {
		return nil, ErrSaltSecret
	}
	if window <= 0 {
		window = time.Hour
	}
	return &Salts{secret: append([]byte(nil), secret...), window: window}, nil
}

func (s *Salts) bucket(t time.Time) int64 {
	return t.Unix() / int64(s.window/time.Second)
}

// Derive returns the salt of authKeyID for bucket.
func (s *Salts) Derive(authKeyID, bucket int64) int64 {
	h, err := blake2b.New256(s.secret)
	if err != nil {
		// unreachable: the secret length is checked in NewSalts
		panic(err)
	}
	var in [16]byte
	binary.LittleEndian.PutUint64(in[:8], uint64(authKeyID))
	binary.LittleEndian.PutUint64(in[8:], uint64(bucket))
	h.Write(in[:])
	return int64(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// Current returns the salt valid at now.
func (s *Salts) Current(authKeyID int64, now time.Time) int64 {
	return s.Derive(authKeyID, s.bucket(now))
}

// Valid reports whether salt is the current or the previous salt.
func (s *Salts) Valid(authKeyID, salt int64, now time.Time) bool {
	b := s.bucket(now)
	return salt == s.Derive(authKeyID, b) || salt == s.Derive(authKeyID, b-1)
}

// Future returns n consecutive salts starting with the current one.
func (s *Salts) Future(authKeyID int64, now time.Time, n int) []SaltWindow {
	step := int64(s.window / time.Second)
	b := s.bucket(now)
	out := make([]SaltWindow, 0, n)
	for i := int64(0); i < int64(n); i++ {
		out = append(out, SaltWindow{
			ValidSince: time.Unix((b+i)*step, 0),
			ValidUntil: time.Unix((b+i+1)*step, 0),
			Salt:       s.Derive(authKeyID, b+i),
		})
	}
	return out
}
