package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/mtproto"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxFutureSalts = 64

func errConstructorInvalid() *tl.RPCError { return tl.NewRPCError(400, "INPUT_CONSTRUCTOR_INVALID") }
func errLayerInvalid() *tl.RPCError       { return tl.NewRPCError(400, "LAYER_INVALID") }
func errAuthKeyPermEmpty() *tl.RPCError   { return tl.NewRPCError(401, "AUTH_KEY_PERM_EMPTY") }

// fanOut handles the messages of a container concurrently and returns the
// replies in container order once all of them are done.
func (c *conn) fanOut(s *session.Session, msgs []*tl.Message) []outMsg {
	results := make([][]outMsg, len(msgs))
	var g errgroup.Group
	g.SetLimit(c.srv.cfg.MaxContainerWorkers)
	for i, m := range msgs {
		g.Go(func() error {
			results[i] = c.handleMessage(c.ctx, s, m.MsgID, m.SeqNo, m.Body)
			return nil
		})
	}
	_ = g.Wait()

	var out []outMsg
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// handleMessage handles one non-container message and returns what to send
// back. A failing message only ever produces its own error reply.
func (c *conn) handleMessage(ctx context.Context, s *session.Session, msgID int64, seqNo int32, body []byte) []outMsg {
	ctor, err := tl.Constructor(body)
	if err != nil {
		return nil
	}
	if err := c.srv.validator.CheckSeqNo(msgID, seqNo, mtproto.ContentRelated(ctor)); err != nil {
		var bad *mtproto.BadMessage
		if errors.As(err, &bad) {
			return []outMsg{replyMsg(bad.Notification(), false)}
		}
		return nil
	}

	obj, err := tl.Decode(body)
	if err == nil {
		obj, err = tl.Unwrap(obj)
	}
	if err != nil {
		c.log.Debug("undecodable message", zap.Int64("msg_id", msgID), zap.Error(err))
		return []outMsg{c.result(s, msgID, errConstructorInvalid())}
	}

	switch q := obj.(type) {
	case *tl.MsgsAck:
		return nil
	case *tl.Ping:
		return []outMsg{replyMsg(&tl.Pong{MsgID: msgID, PingID: q.PingID}, false)}
	case *tl.PingDelayDisconnect:
		c.delayDisconnect(time.Duration(q.DisconnectDelay) * time.Second)
		return []outMsg{replyMsg(&tl.Pong{MsgID: msgID, PingID: q.PingID}, false)}
	case *tl.GetFutureSalts:
		return []outMsg{replyMsg(c.futureSalts(msgID, q.Num), true)}
	case *tl.DestroySession:
		return []outMsg{c.result(s, msgID, c.destroySession(s, q.SessionID))}
	case *tl.MsgContainer:
		bad := &mtproto.BadMessage{Code: mtproto.CodeInvalidContainer, MsgID: msgID, SeqNo: seqNo}
		return []outMsg{replyMsg(bad.Notification(), false)}
	}

	res := c.invoke(ctx, s, msgID, obj)
	if res == nil {
		return nil
	}
	return []outMsg{c.result(s, msgID, res)}
}

// invoke unwraps the layer and connection wrappers and runs the query. It
// returns nil when the connection went away before the result.
func (c *conn) invoke(ctx context.Context, s *session.Session, msgID int64, query tl.Object) tl.Object {
	for {
		switch q := query.(type) {
		case *tl.InvokeWithLayer:
			if q.Layer < c.srv.cfg.MinLayer {
				return errLayerInvalid()
			}
			s.SetLayer(min(q.Layer, c.srv.deps.Layers.Current()))
			query = q.Query
			continue
		case *tl.InitConnection:
			query = q.Query
			continue
		}
		break
	}
	if query == nil {
		return errConstructorInvalid()
	}

	key := c.currentKey()
	if q, ok := query.(*tl.AuthBindTempAuthKey); ok {
		return c.bindTempKey(ctx, s, key, msgID, q)
	}
	if key.Temporary() && !key.Bound() {
		return errAuthKeyPermEmpty()
	}

	auth := s.Authorization()
	res, err := c.srv.deps.Invoker.Invoke(ctx, rpc.Caller{
		AuthKeyID:     key.ID,
		PermAuthKeyID: key.PermID,
		SessionID:     s.SessionID,
		UserID:        auth.UserID,
		AuthID:        auth.AuthID,
		IsBot:         auth.IsBot,
		Layer:         s.Layer(),
	}, query)
	if err != nil {
		c.log.Debug("call abandoned", zap.Int64("msg_id", msgID), zap.Error(err))
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	return res.Object
}

// result wraps a reply to msgID in rpc_result, downgraded to the session's
// layer and compressed when large.
func (c *conn) result(s *session.Session, msgID int64, obj tl.Object) outMsg {
	if _, isErr := obj.(*tl.RPCError); isErr {
		return replyMsg(&tl.RPCResult{ReqMsgID: msgID, Result: obj}, true)
	}
	down, err := c.srv.deps.Layers.Downgrade(obj, s.Layer())
	if err != nil {
		c.log.Error("downgrade result", zap.Int32("layer", s.Layer()), zap.Error(err))
		return replyMsg(&tl.RPCResult{ReqMsgID: msgID, Result: rpc.ErrInternal()}, true)
	}
	raw, err := tl.Marshal(down)
	if err != nil {
		c.log.Error("encode result", zap.Int64("msg_id", msgID), zap.Error(err))
		return replyMsg(&tl.RPCResult{ReqMsgID: msgID, Result: rpc.ErrInternal()}, true)
	}
	obj = down
	if t := c.srv.cfg.GzipThreshold; t > 0 && len(raw) > t {
		if packed, err := tl.Pack(obj); err == nil && len(packed.Data) < len(raw) {
			obj = packed
		}
	}
	return replyMsg(&tl.RPCResult{ReqMsgID: msgID, Result: obj}, true)
}

func (c *conn) futureSalts(msgID int64, num int32) *tl.FutureSalts {
	num = max(1, min(num, maxFutureSalts))
	now := time.Now()
	windows := c.srv.deps.Salts.Future(c.currentKey().ID, now, int(num))
	out := &tl.FutureSalts{ReqMsgID: msgID, Now: int32(now.Unix()), Salts: make([]tl.FutureSalt, len(windows))}
	for i, w := range windows {
		out.Salts[i] = tl.FutureSalt{
			ValidSince: int32(w.ValidSince.Unix()),
			ValidUntil: int32(w.ValidUntil.Unix()),
			Salt:       w.Salt,
		}
	}
	return out
}

// destroySession removes another session of the same auth key.
func (c *conn) destroySession(cur *session.Session, id int64) tl.Object {
	if id == cur.SessionID {
		return &tl.DestroySessionNone{SessionID: id}
	}
	other, ok := c.srv.deps.Sessions.Get(session.Key{AuthKeyID: cur.AuthKeyID, SessionID: id})
	if !ok {
		return &tl.DestroySessionNone{SessionID: id}
	}
	c.dropSession(other)
	c.mu.Lock()
	if c.sessions[id] == other {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	return &tl.DestroySessionOk{SessionID: id}
}

// delayDisconnect closes the connection when no ping arrives within d.
func (c *conn) delayDisconnect(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingStop != nil {
		c.pingStop.Stop()
	}
	if d <= 0 {
		c.pingStop = nil
		return
	}
	c.pingStop = time.AfterFunc(d, func() {
		c.log.Debug("ping_delay_disconnect expired")
		c.close()
	})
}

// bindTempKey verifies auth.bindTempAuthKey and links the connection's
// temporary key to the permanent one.
func (c *conn) bindTempKey(ctx context.Context, s *session.Session, key *mtproto.StoredKey, msgID int64, req *tl.AuthBindTempAuthKey) tl.Object {
	if !key.Temporary() {
		return mtproto.ErrEncryptedMessageInvalid()
	}
	perm, err := c.srv.deps.Keys.Get(ctx, req.PermAuthKeyID)
	if err != nil || perm.Temporary() {
		return mtproto.ErrEncryptedMessageInvalid()
	}
	if err := mtproto.VerifyBinding(req, key.AuthKey, perm.AuthKey, msgID, s.SessionID); err != nil {
		c.log.Warn("temp key binding rejected", zap.Int64("perm_auth_key_id", req.PermAuthKeyID))
		return mtproto.ErrEncryptedMessageInvalid()
	}
	if err := c.srv.deps.Keys.Bind(ctx, key.ID, perm.ID); err != nil {
		c.log.Error("store key binding", zap.Error(err))
		return rpc.ErrInternal()
	}

	bound := &mtproto.StoredKey{AuthKey: key.AuthKey, PermID: perm.ID}
	c.mu.Lock()
	c.key = bound
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, other := range c.sessions {
		sessions = append(sessions, other)
	}
	c.mu.Unlock()
	for _, other := range sessions {
		c.authorize(other, perm.ID)
	}
	c.log.Info("temp key bound", zap.Int64("auth_key_id", key.ID), zap.Int64("perm_auth_key_id", perm.ID))
	return tl.NewBool(true)
}
