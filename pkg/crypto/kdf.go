package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// Direction selects the auth key slice used by the key derivation, so the
// two directions of a connection never share AES keys.
type Direction int

const (
	ClientToServer Direction = 0
	ServerToClient Direction = 8
)

var ErrMsgKeyMismatch = errors.New("crypto: msg_key mismatch")

// MsgKeyLarge returns SHA256(auth_key[88+x:120+x] + plaintext).
func MsgKeyLarge(key *AuthKey, dir Direction, plaintext []byte) [32]byte {
	x := int(dir)
	h := sha256.New()
	h.Write(key.Key[88+x : 120+x])
	h.Write(plaintext)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// MsgKey is the middle 128 bits of MsgKeyLarge.
func MsgKey(large [32]byte) (k [16]byte) {
	copy(k[:], large[8:24])
	return k
}

// QuickAckToken is the first 32 bits of MsgKeyLarge with the MSB set.
func QuickAckToken(large [32]byte) uint32 {
	return binary.LittleEndian.Uint32(large[:4]) | 0x80000000
}

// DeriveAESv2 is the MTProto 2.0 KDF.
func DeriveAESv2(key *AuthKey, msgKey [16]byte, dir Direction) (aesKey [32]byte, aesIV [32]byte) {
	x := int(dir)
	a := sha256.New()
	a.Write(msgKey[:])
	a.Write(key.Key[x : x+36])
	sa := a.Sum(nil)

	b := sha256.New()
	b.Write(key.Key[40+x : 76+x])
	b.Write(msgKey[:])
	sb := b.Sum(nil)

	copy(aesKey[0:8], sa[0:8])
	copy(aesKey[8:24], sb[8:24])
	copy(aesKey[24:32], sa[24:32])
	copy(aesIV[0:8], sb[0:8])
	copy(aesIV[8:24], sa[8:24])
	copy(aesIV[24:32], sb[24:32])
	return aesKey, aesIV
}

// DeriveAESv1 is the SHA1-based KDF of MTProto 1.0, still used for the
// inner message of auth.bindTempAuthKey.
func DeriveAESv1(key *AuthKey, msgKey [16]byte, dir Direction) (aesKey [32]byte, aesIV [32]byte) {
	x := int(dir)
	sum := func(parts ...[]byte) []byte {
		h := sha1.New()
		for _, p := range parts {
			h.Write(p)
		}
		return h.Sum(nil)
	}
	a := sum(msgKey[:], key.Key[x:x+32])
	b := sum(key.Key[32+x:48+x], msgKey[:], key.Key[48+x:64+x])
	c := sum(key.Key[64+x:96+x], msgKey[:])
	d := sum(msgKey[:], key.Key[96+x:128+x])

	copy(aesKey[0:8], a[0:8])
	copy(aesKey[8:20], b[8:20])
	copy(aesKey[20:32], c[4:16])
	copy(aesIV[0:12], a[8:20])
	copy(aesIV[12:20], b[0:8])
	copy(aesIV[20:24], c[16:20])
	copy(aesIV[24:32], d[0:8])
	return aesKey, aesIV
}

// Seal pads and encrypts plaintext with MTProto 2.0 and returns msg_key
// and the ciphertext.
func Seal(key *AuthKey, dir Direction, plaintext []byte) ([16]byte, []byte, error) {
	padded, _, err := AddPadding(plaintext, PaddingV2)
	if err != nil {
		return [16]byte{}, nil, err
	}
	msgKey := MsgKey(MsgKeyLarge(key, dir, padded))
	aesKey, aesIV := DeriveAESv2(key, msgKey, dir)
	out, err := EncryptIGE(aesKey[:], aesIV[:], padded)
	if err != nil {
		return [16]byte{}, nil, err
	}
	return msgKey, out, nil
}

// Open decrypts an MTProto 2.0 payload and verifies msg_key. It returns the
// padded plaintext and the full SHA256 the msg_key was cut from.
func Open(key *AuthKey, dir Direction, msgKey [16]byte, ciphertext []byte) ([]byte, [32]byte, error) {
	aesKey, aesIV := DeriveAESv2(key, msgKey, dir)
	plain, err := DecryptIGE(aesKey[:], aesIV[:], ciphertext)
	if err != nil {
		return nil, [32]byte{}, err
	}
	large := MsgKeyLarge(key, dir, plain)
	want := MsgKey(large)
	if subtle.ConstantTimeCompare(want[:], msgKey[:]) != 1 {
		return nil, [32]byte{}, ErrMsgKeyMismatch
	}
	return plain, large, nil
}

// MsgKeyV1 is SHA1(plaintext)[4:20] over the unpadded plaintext.
func MsgKeyV1(plaintext []byte) (k [16]byte) {
	sum := sha1.Sum(plaintext)
	copy(k[:], sum[4:20])
	return k
}

// SealV1 encrypts plaintext with MTProto 1.0.
func SealV1(key *AuthKey, plaintext []byte) ([16]byte, []byte, error) {
	msgKey := MsgKeyV1(plaintext)
	padded, _, err := AddPadding(plaintext, PaddingV1)
	if err != nil {
		return [16]byte{}, nil, err
	}
	aesKey, aesIV := DeriveAESv1(key, msgKey, ClientToServer)
	out, err := EncryptIGE(aesKey[:], aesIV[:], padded)
	if err != nil {
		return [16]byte{}, nil, err
	}
	return msgKey, out, nil
}

// OpenV1 decrypts an MTProto 1.0 payload. The caller verifies msg_key once
// it knows the unpadded length.
func OpenV1(key *AuthKey, msgKey [16]byte, ciphertext []byte) ([]byte, error) {
	aesKey, aesIV := DeriveAESv1(key, msgKey, ClientToServer)
	return DecryptIGE(aesKey[:], aesIV[:], ciphertext)
}
