package mtproto

import (
	"errors"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/transport"
)

// Bad message codes carried by bad_msg_notification.
const (
	CodeMsgIDTooLow       int32 = 16
	CodeMsgIDTooHigh      int32 = 17
	CodeMsgIDNotDivisible int32 = 18
	CodeMsgIDDuplicate    int32 = 19
	CodeMsgIDTooOld       int32 = 20
	CodeSeqNoTooLow       int32 = 32
	CodeSeqNoTooHigh      int32 = 33
	CodeSeqNoExpectedOdd  int32 = 34
	CodeSeqNoExpectedEven int32 = 35
	CodeBadServerSalt     int32 = 48
	CodeInvalidContainer  int32 = 64
)

var (
	ErrKeyNotFound   = errors.New("mtproto: auth key not found")
	ErrShortMessage  = errors.New("mtproto: message too short")
	ErrBadLength     = errors.New("mtproto: inner length out of range")
	ErrKeyIDMismatch = errors.New("mtproto: auth_key_id does not match key")
)

// Disconnect is a fatal protocol condition. Code is the transport error
// written to the peer before the connection closes.
type Disconnect struct {
	Code int32
	Err  error
}

func (d *Disconnect) Error() string {
	return fmt.Sprintf("mtproto: disconnect %d: %v", d.Code, d.Err)
}

func (d *Disconnect) Unwrap() error { return d.Err }

func disconnect(err error) *Disconnect {
	return &Disconnect{Code: transport.CodeAuthKeyNotFound, Err: err}
}

// BadMessage is a recoverable rejection of one message.
type BadMessage struct {
	Code    int32
	MsgID   int64
	SeqNo   int32
	NewSalt int64
}

func (b *BadMessage) Error() string {
	return fmt.Sprintf("mtproto: bad message %d (msg_id %d, seq_no %d)", b.Code, b.MsgID, b.SeqNo)
}

// Notification builds the service message reporting b to the client.
func (b *BadMessage) Notification() tl.Object {
	if b.Code == CodeBadServerSalt {
		return &tl.BadServerSalt{
			BadMsgID:      b.MsgID,
			BadMsgSeqNo:   b.SeqNo,
			ErrorCode:     b.Code,
			NewServerSalt: b.NewSalt,
		}
	}
	return &tl.BadMsgNotification{BadMsgID: b.MsgID, BadMsgSeqNo: b.SeqNo, ErrorCode: b.Code}
}
