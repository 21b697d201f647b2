package mtproto

import (
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

const (
	DefaultPastWindow   = 300 * time.Second
	DefaultFutureWindow = 30 * time.Second
)

// Validator checks incoming messages against server time and salts.
type Validator struct {
	Salts        *crypto.Salts
	PastWindow   time.Duration
	FutureWindow time.Duration
	Now          func() time.Time
}

func NewValidator(salts *crypto.Salts) *Validator {
	return &Validator{
		Salts:        salts,
		PastWindow:   DefaultPastWindow,
		FutureWindow: DefaultFutureWindow,
		Now:          time.Now,
	}
}

// CheckMsgID rejects client message ids that are not divisible by 4 or lie
// outside the accepted time window.
func (v *Validator) CheckMsgID(msgID int64, seqNo int32) error {
	if msgID%4 != 0 {
		return &BadMessage{Code: CodeMsgIDNotDivisible, MsgID: msgID, SeqNo: seqNo}
	}
	now := v.Now()
	sent := MsgIDTime(msgID)
	switch {
	case sent.Before(now.Add(-v.PastWindow)):
		return &BadMessage{Code: CodeMsgIDTooLow, MsgID: msgID, SeqNo: seqNo}
	case sent.After(now.Add(v.FutureWindow)):
		return &BadMessage{Code: CodeMsgIDTooHigh, MsgID: msgID, SeqNo: seqNo}
	}
	return nil
}

// CheckSalt accepts the current and the previous salt of authKeyID. A
// mismatch carries the current salt.
func (v *Validator) CheckSalt(authKeyID, salt, msgID int64, seqNo int32) error {
	now := v.Now()
	if v.Salts.Valid(authKeyID, salt, now) {
		return nil
	}
	return &BadMessage{
		Code:    CodeBadServerSalt,
		MsgID:   msgID,
		SeqNo:   seqNo,
		NewSalt: v.Salts.Current(authKeyID, now),
	}
}

// CheckSeqNo checks the parity of seqNo against whether the message is
// content related.
func (v *Validator) CheckSeqNo(msgID int64, seqNo int32, contentRelated bool) error {
	odd := seqNo&1 == 1
	switch {
	case contentRelated && !odd:
		return &BadMessage{Code: CodeSeqNoExpectedOdd, MsgID: msgID, SeqNo: seqNo}
	case !contentRelated && odd:
		return &BadMessage{Code: CodeSeqNoExpectedEven, MsgID: msgID, SeqNo: seqNo}
	}
	return nil
}

// CheckContainer requires an even container seq_no and every inner message
// id below the container's own id, and forbids nested containers.
func (v *Validator) CheckContainer(msgID int64, seqNo int32, c *tl.MsgContainer) error {
	if err := v.CheckSeqNo(msgID, seqNo, false); err != nil {
		return err
	}
	for _, m := range c.Messages {
		if m.MsgID >= msgID {
			return &BadMessage{Code: CodeInvalidContainer, MsgID: msgID, SeqNo: seqNo}
		}
		if id, err := tl.Constructor(m.Body); err == nil && id == tl.CrcMsgContainer {
			return &BadMessage{Code: CodeInvalidContainer, MsgID: msgID, SeqNo: seqNo}
		}
	}
	return nil
}

// ContentRelated reports whether a message with constructor id requires
// acknowledgement and so carries an odd seq_no.
func ContentRelated(id uint32) bool {
	switch id {
	case tl.CrcMsgContainer, tl.CrcMsgsAck, tl.CrcBadMsgNotification, tl.CrcBadServerSalt, tl.CrcPong:
		return false
	}
	return true
}
