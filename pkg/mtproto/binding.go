package mtproto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

// ErrEncryptedMessageInvalid is returned for any binding that fails to
// verify.
func ErrEncryptedMessageInvalid() *tl.RPCError {
	return tl.NewRPCError(400, "ENCRYPTED_MESSAGE_INVALID")
}

const bindHeaderLen = 16 + 8 + 4 + 4

// VerifyBinding checks an auth.bindTempAuthKey request received on the
// temporary key temp with message id msgID in session sessionID. The
// encrypted inner message must be sealed with perm and repeat the request's
// nonce, key ids, session id and expiry.
func VerifyBinding(req *tl.AuthBindTempAuthKey, temp, perm *crypto.AuthKey, msgID, sessionID int64) error {
	enc := req.EncryptedMessage
	if len(enc) < outerHeaderLen+bindHeaderLen || (len(enc)-outerHeaderLen)%crypto.BlockSize != 0 {
		return ErrEncryptedMessageInvalid()
	}
	if int64(binary.LittleEndian.Uint64(enc)) != perm.ID || req.PermAuthKeyID != perm.ID {
		return ErrEncryptedMessageInvalid()
	}
	var msgKey [16]byte
	copy(msgKey[:], enc[8:outerHeaderLen])

	plain, err := crypto.OpenV1(perm, msgKey, enc[outerHeaderLen:])
	if err != nil {
		return ErrEncryptedMessageInvalid()
	}
	innerMsgID := int64(binary.LittleEndian.Uint64(plain[16:]))
	length := int(int32(binary.LittleEndian.Uint32(plain[28:])))
	if length < 0 || length > len(plain)-bindHeaderLen {
		return ErrEncryptedMessageInvalid()
	}
	want := crypto.MsgKeyV1(plain[:bindHeaderLen+length])
	if subtle.ConstantTimeCompare(want[:], msgKey[:]) != 1 {
		return ErrEncryptedMessageInvalid()
	}
	if innerMsgID != msgID {
		return ErrEncryptedMessageInvalid()
	}

	obj, err := tl.Decode(plain[bindHeaderLen : bindHeaderLen+length])
	if err != nil {
		return ErrEncryptedMessageInvalid()
	}
	inner, ok := obj.(*tl.BindAuthKeyInner)
	if !ok ||
		inner.Nonce != req.Nonce ||
		inner.TempAuthKeyID != temp.ID ||
		inner.PermAuthKeyID != perm.ID ||
		inner.TempSessionID != sessionID ||
		inner.ExpiresAt != req.ExpiresAt {
		return ErrEncryptedMessageInvalid()
	}
	return nil
}

// SealBinding builds the encrypted_message of auth.bindTempAuthKey, as a
// client does.
func SealBinding(perm *crypto.AuthKey, msgID int64, inner *tl.BindAuthKeyInner) ([]byte, error) {
	body, err := tl.Marshal(inner)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, bindHeaderLen, bindHeaderLen+len(body))
	if _, err := rand.Read(plain[:16]); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(plain[16:], uint64(msgID))
	binary.LittleEndian.PutUint32(plain[24:], 0)
	binary.LittleEndian.PutUint32(plain[28:], uint32(len(body)))
	plain = append(plain, body...)

	msgKey, ciphertext, err := crypto.SealV1(perm, plain)
	if err != nil {
		return nil, err
	}
	out := binary.LittleEndian.AppendUint64(nil, uint64(perm.ID))
	out = append(out, msgKey[:]...)
	return append(out, ciphertext...), nil
}
