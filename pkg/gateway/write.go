package gateway

import (
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/mtproto"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"go.uber.org/zap"
)

// outMsg is one outgoing message body. content marks messages that need
// an acknowledgement and therefore take an odd seq_no; reply marks answers
// to client messages, whose ids end in binary 01.
type outMsg struct {
	obj     tl.Object
	content bool
	reply   bool
}

func replyMsg(obj tl.Object, content bool) outMsg {
	return outMsg{obj: obj, content: content, reply: true}
}

// send encrypts msgs for s and writes them as one frame: a single message,
// or a container when there are several. Message ids and seq_nos are
// assigned under writeMu, so they increase in wire order.
func (c *conn) send(s *session.Session, msgs ...outMsg) {
	if len(msgs) == 0 {
		return
	}
	key := c.currentKey()
	if key == nil {
		return
	}

	kept := make([]outMsg, 0, len(msgs))
	bodies := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		b, err := tl.Marshal(m.obj)
		if err != nil {
			c.log.Error("encode message", zap.Error(err))
			continue
		}
		kept = append(kept, m)
		bodies = append(bodies, b)
	}
	if len(kept) == 0 {
		return
	}
	msgs = kept

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var (
		msgID int64
		seqNo int32
		body  []byte
	)
	if len(msgs) == 1 {
		msgID = c.msgIDs.Next(msgs[0].reply)
		seqNo = s.NextSeqNo(msgs[0].content)
		body = bodies[0]
	} else {
		container := &tl.MsgContainer{Messages: make([]*tl.Message, len(msgs))}
		for i, m := range msgs {
			container.Messages[i] = &tl.Message{
				MsgID: c.msgIDs.Next(m.reply),
				SeqNo: s.NextSeqNo(m.content),
				Body:  bodies[i],
			}
		}
		msgID = c.msgIDs.Next(msgs[0].reply)
		seqNo = s.NextSeqNo(false)
		var err error
		if body, err = tl.Marshal(container); err != nil {
			c.log.Error("encode container", zap.Error(err))
			return
		}
	}

	frame, err := mtproto.Encrypt(key.AuthKey, crypto.ServerToClient, &mtproto.Message{
		Salt:      c.srv.deps.Salts.Current(key.ID, time.Now()),
		SessionID: s.SessionID,
		MsgID:     msgID,
		SeqNo:     seqNo,
		Body:      body,
	})
	if err != nil {
		c.log.Error("encrypt message", zap.Error(err))
		return
	}
	if err := c.codec.Send(frame); err != nil {
		c.log.Debug("write failed", zap.Error(err))
		c.close()
		return
	}
	c.srv.framesOut.Add(1)
}

// write sends a raw frame.
func (c *conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.codec.Send(frame); err != nil {
		return err
	}
	c.srv.framesOut.Add(1)
	return nil
}
