package mtproto

import (
	"encoding/binary"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
)

const (
	outerHeaderLen = 8 + 16
	innerHeaderLen = 8 + 8 + 8 + 4 + 4
	plainHeaderLen = 8 + 8 + 4
)

// Message is a decrypted MTProto message.
type Message struct {
	Salt      int64
	SessionID int64
	MsgID     int64
	SeqNo     int32
	Body      []byte
}

// AuthKeyID returns the leading auth_key_id of a frame. Zero means the
// frame is an unencrypted handshake message.
func AuthKeyID(frame []byte) (int64, error) {
	if len(frame) < 8 {
		return 0, disconnect(ErrShortMessage)
	}
	return int64(binary.LittleEndian.Uint64(frame)), nil
}

// Decrypt opens an encrypted frame with key. dir is the direction the
// frame travelled. Trailing bytes beyond the last full AES block, as left
// by the padded transport, are ignored. The returned token is the quick ack
// token for the frame.
func Decrypt(key *crypto.AuthKey, dir crypto.Direction, frame []byte) (*Message, uint32, error) {
	if len(frame) < outerHeaderLen+innerHeaderLen {
		return nil, 0, disconnect(ErrShortMessage)
	}
	if id := int64(binary.LittleEndian.Uint64(frame)); id != key.ID {
		return nil, 0, disconnect(ErrKeyIDMismatch)
	}
	var msgKey [16]byte
	copy(msgKey[:], frame[8:outerHeaderLen])
	data := frame[outerHeaderLen:]
	data = data[:len(data)-len(data)%crypto.BlockSize]

	plain, large, err := crypto.Open(key, dir, msgKey, data)
	if err != nil {
		return nil, 0, disconnect(err)
	}

	m := &Message{
		Salt:      int64(binary.LittleEndian.Uint64(plain[0:])),
		SessionID: int64(binary.LittleEndian.Uint64(plain[8:])),
		MsgID:     int64(binary.LittleEndian.Uint64(plain[16:])),
		SeqNo:     int32(binary.LittleEndian.Uint32(plain[24:])),
	}
	length := int(int32(binary.LittleEndian.Uint32(plain[28:])))
	if length < 0 || length%4 != 0 || length > len(plain)-innerHeaderLen {
		return nil, 0, disconnect(ErrBadLength)
	}
	body, err := crypto.RemovePadding(plain[innerHeaderLen:], length, crypto.PaddingV2)
	if err != nil {
		return nil, 0, disconnect(fmt.Errorf("%w: %v", ErrBadLength, err))
	}
	m.Body = body
	return m, crypto.QuickAckToken(large), nil
}

// Encrypt seals m with key for direction dir and returns the frame.
func Encrypt(key *crypto.AuthKey, dir crypto.Direction, m *Message) ([]byte, error) {
	plain := make([]byte, innerHeaderLen, innerHeaderLen+len(m.Body))
	binary.LittleEndian.PutUint64(plain[0:], uint64(m.Salt))
	binary.LittleEndian.PutUint64(plain[8:], uint64(m.SessionID))
	binary.LittleEndian.PutUint64(plain[16:], uint64(m.MsgID))
	binary.LittleEndian.PutUint32(plain[24:], uint32(m.SeqNo))
	binary.LittleEndian.PutUint32(plain[28:], uint32(len(m.Body)))
	plain = append(plain, m.Body...)

	msgKey, ciphertext, err := crypto.Seal(key, dir, plain)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, outerHeaderLen+len(ciphertext))
	frame = binary.LittleEndian.AppendUint64(frame, uint64(key.ID))
	frame = append(frame, msgKey[:]...)
	return append(frame, ciphertext...), nil
}

// ParsePlain parses an unencrypted frame: auth_key_id = 0, msg_id, length,
// body.
func ParsePlain(frame []byte) (int64, []byte, error) {
	if len(frame) < plainHeaderLen {
		return 0, nil, disconnect(ErrShortMessage)
	}
	msgID := int64(binary.LittleEndian.Uint64(frame[8:]))
	length := int(int32(binary.LittleEndian.Uint32(frame[16:])))
	if length < 0 || length > len(frame)-plainHeaderLen {
		return 0, nil, disconnect(ErrBadLength)
	}
	return msgID, frame[plainHeaderLen : plainHeaderLen+length], nil
}

// EncodePlain builds an unencrypted frame.
func EncodePlain(msgID int64, body []byte) []byte {
	frame := make([]byte, 0, plainHeaderLen+len(body))
	frame = binary.LittleEndian.AppendUint64(frame, 0)
	frame = binary.LittleEndian.AppendUint64(frame, uint64(msgID))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(body)))
	return append(frame, body...)
}
