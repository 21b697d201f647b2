package gateway

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/mtproto"
	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/storage"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/transport"
	"go.uber.org/zap"
)

var errKeyChanged = errors.New("gateway: auth key changed on connection")

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// pushed is a queued update, or a request to refresh the session's channel
// subscriptions when update is nil.
type pushed struct {
	sess   *session.Session
	update tl.Object
}

// conn is one client connection. The read loop runs in serve; decoded
// messages are handled on their own goroutines and all writes go through
// writeMu so that message ids and seq_nos reach the wire in order.
type conn struct {
	srv    *Server
	rwc    io.ReadWriteCloser
	id     string
	remote string
	log    *zap.Logger
	codec  transport.Codec

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex
	msgIDs  *mtproto.MsgIDGenerator

	mu       sync.Mutex
	key      *mtproto.StoredKey
	sessions map[int64]*session.Session
	pingStop *time.Timer

	updates   chan pushed
	closeOnce sync.Once
}

func newConn(srv *Server, rwc io.ReadWriteCloser, id, remote string) *conn {
	ctx, cancel := context.WithCancel(srv.ctx)
	return &conn{
		srv:      srv,
		rwc:      rwc,
		id:       id,
		remote:   remote,
		log:      srv.log.With(zap.String("conn_id", id), zap.String("remote", remote)),
		ctx:      ctx,
		cancel:   cancel,
		msgIDs:   mtproto.NewMsgIDGenerator(),
		sessions: make(map[int64]*session.Session),
		updates:  make(chan pushed, srv.cfg.UpdateQueue),
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.rwc.Close()
	})
}

func (c *conn) serve() {
	c.log.Debug("connection opened")
	defer c.teardown()

	c.armIdle()
	codec, err := transport.Accept(c.rwc, c.srv.cfg.Limits)
	if err != nil {
		c.log.Debug("transport detection failed", zap.Error(err))
		return
	}
	c.codec = codec
	c.log.Info("connection established", zap.Stringer("transport", codec.Kind()))

	c.wg.Add(1)
	go c.updateLoop()

	if err := c.readLoop(); err != nil {
		var d *mtproto.Disconnect
		if errors.As(err, &d) {
			c.log.Warn("disconnecting", zap.Int32("code", d.Code), zap.Error(d.Err))
			c.writeMu.Lock()
			_ = c.codec.SendError(d.Code)
			c.writeMu.Unlock()
			return
		}
		if !errors.Is(err, io.EOF) && c.ctx.Err() == nil {
			c.log.Debug("read loop ended", zap.Error(err))
		}
	}
}

// teardown unsubscribes and removes every session of the connection before
// in-flight handlers are cancelled.
func (c *conn) teardown() {
	c.mu.Lock()
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = map[int64]*session.Session{}
	if c.pingStop != nil {
		c.pingStop.Stop()
	}
	c.mu.Unlock()

	for _, s := range sessions {
		c.dropSession(s)
	}
	c.close()
	c.wg.Wait()
	c.log.Info("connection closed", zap.Int("sessions", len(sessions)))
}

func (c *conn) dropSession(s *session.Session) {
	if err := c.srv.deps.Broker.UnsubscribeAll(context.Background(), s); err != nil {
		c.log.Error("unsubscribe session", zap.Int64("session_id", s.SessionID), zap.Error(err))
	}
	c.srv.deps.Sessions.Remove(s)
}

func (c *conn) armIdle() {
	if c.srv.cfg.IdleTimeout <= 0 {
		return
	}
	if d, ok := c.rwc.(deadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(c.srv.cfg.IdleTimeout))
	}
}

func (c *conn) readLoop() error {
	for {
		frame, err := c.codec.Recv()
		if err != nil {
			return err
		}
		c.srv.framesIn.Add(1)
		c.armIdle()

		authKeyID, err := mtproto.AuthKeyID(frame.Payload)
		if err != nil {
			return err
		}
		if authKeyID == 0 {
			if err := c.handlePlain(frame.Payload); err != nil {
				return err
			}
			continue
		}
		if err := c.handleEncrypted(authKeyID, frame); err != nil {
			return err
		}
	}
}

func (c *conn) handlePlain(payload []byte) error {
	msgID, body, err := mtproto.ParsePlain(payload)
	if err != nil {
		return err
	}
	if c.srv.deps.Exchanger == nil {
		return &mtproto.Disconnect{Code: transport.CodeAuthKeyNotFound, Err: errors.New("no key exchange configured")}
	}
	resp, err := c.srv.deps.Exchanger.HandlePlain(c.ctx, c.id, msgID, body)
	if err != nil {
		return &mtproto.Disconnect{Code: transport.CodeAuthKeyNotFound, Err: err}
	}
	if resp == nil {
		return nil
	}
	return c.write(mtproto.EncodePlain(c.msgIDs.Next(true), resp))
}

// authKey resolves the connection's key. Every encrypted frame on a
// connection must use the same key.
func (c *conn) authKey(id int64) (*mtproto.StoredKey, error) {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key != nil {
		if key.ID != id {
			return nil, &mtproto.Disconnect{Code: transport.CodeAuthKeyNotFound, Err: errKeyChanged}
		}
		return key, nil
	}

	key, err := c.srv.deps.Keys.Get(c.ctx, id)
	if errors.Is(err, mtproto.ErrKeyNotFound) {
		return nil, &mtproto.Disconnect{Code: transport.CodeAuthKeyNotFound, Err: err}
	}
	if err != nil {
		return nil, err
	}
	if key.Expired(time.Now()) {
		return nil, &mtproto.Disconnect{Code: transport.CodeAuthKeyNotFound, Err: errors.New("auth key expired")}
	}
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	c.log.Debug("auth key resolved", zap.Int64("auth_key_id", id), zap.Stringer("type", key.Type))
	return key, nil
}

func (c *conn) currentKey() *mtproto.StoredKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// session returns the connection's session with id, attaching a new one
// when needed. A cached session that was destroyed or taken over by another
// connection since the last message is replaced by a fresh one.
func (c *conn) session(key *mtproto.StoredKey, id int64) *session.Session {
	skey := session.Key{AuthKeyID: key.ID, SessionID: id}
	c.mu.Lock()
	s, ok := c.sessions[id]
	c.mu.Unlock()
	if ok {
		if cur, live := c.srv.deps.Sessions.Get(skey); live && cur == s {
			return s
		}
		c.log.Debug("session no longer registered, attaching again", zap.Int64("session_id", id))
		if err := c.srv.deps.Broker.UnsubscribeAll(c.ctx, s); err != nil {
			c.log.Error("unsubscribe stale session", zap.Error(err))
		}
	}

	s, _, replaced := c.srv.deps.Sessions.Attach(skey, c.id, c)
	if replaced != nil {
		if err := c.srv.deps.Broker.UnsubscribeAll(c.ctx, replaced); err != nil {
			c.log.Error("unsubscribe replaced session", zap.Error(err))
		}
	}
	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()

	c.authorize(s, key.PermID)
	return s
}

// authorize loads the user of permID into s and subscribes s to its update
// targets.
func (c *conn) authorize(s *session.Session, permID int64) {
	ctx := c.ctx
	s.SetPermAuthKeyID(permID)
	targets := []pubsub.Target{pubsub.AuthKey(s.AuthKeyID)}

	if permID != 0 && c.srv.deps.Authorizations != nil {
		auth, err := c.srv.deps.Authorizations.Lookup(ctx, permID)
		switch {
		case err == nil:
			s.SetAuthorization(auth)
			targets = append(targets, pubsub.User(auth.UserID))
		case errors.Is(err, storage.ErrNotFound):
		default:
			c.log.Error("load authorization", zap.Int64("perm_auth_key_id", permID), zap.Error(err))
		}
	}

	if err := c.srv.deps.Broker.Subscribe(ctx, s, targets...); err != nil {
		c.log.Error("subscribe session", zap.Error(err))
	}
	c.refreshChannels(s)
}

// refreshChannels brings the channel subscriptions of s in line with its
// user's current membership.
func (c *conn) refreshChannels(s *session.Session) {
	m := c.srv.deps.Membership
	if m == nil || s.Authorization().UserID == 0 {
		return
	}
	if cur, ok := c.srv.deps.Sessions.Get(s.Key); !ok || cur != s {
		return
	}
	if err := m.Refresh(c.ctx, s); err != nil && c.ctx.Err() == nil {
		c.log.Error("refresh channel membership", zap.Int64("session_id", s.SessionID), zap.Error(err))
	}
}

func (c *conn) handleEncrypted(authKeyID int64, frame transport.Frame) error {
	key, err := c.authKey(authKeyID)
	if err != nil {
		return err
	}
	msg, token, err := mtproto.Decrypt(key.AuthKey, crypto.ClientToServer, frame.Payload)
	if err != nil {
		return err
	}
	if frame.QuickAck {
		c.writeMu.Lock()
		err := c.codec.SendQuickAck(token)
		c.writeMu.Unlock()
		if err != nil {
			return err
		}
	}

	s := c.session(key, msg.SessionID)
	if err := c.srv.validator.CheckMsgID(msg.MsgID, msg.SeqNo); err != nil {
		return c.reject(s, err)
	}
	ctor, _ := tl.Constructor(msg.Body)
	if ctor != tl.CrcAuthBindTempAuthKey {
		if err := c.srv.validator.CheckSalt(key.ID, msg.Salt, msg.MsgID, msg.SeqNo); err != nil {
			return c.reject(s, err)
		}
	}
	if s.Announce() {
		c.send(s, outMsg{obj: &tl.NewSessionCreated{
			FirstMsgID: msg.MsgID,
			UniqueID:   uniqueID(),
			ServerSalt: c.srv.deps.Salts.Current(key.ID, time.Now()),
		}, content: true})
	}
	if s.Seen(msg.MsgID) {
		c.log.Debug("duplicate message ignored", zap.Int64("msg_id", msg.MsgID))
		return nil
	}

	if ctor == tl.CrcMsgContainer {
		return c.handleContainer(s, msg)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.send(s, c.handleMessage(c.ctx, s, msg.MsgID, msg.SeqNo, msg.Body)...)
	}()
	return nil
}

// reject answers a bad message. Anything other than a BadMessage ends the
// connection.
func (c *conn) reject(s *session.Session, err error) error {
	var bad *mtproto.BadMessage
	if !errors.As(err, &bad) {
		return err
	}
	c.log.Debug("bad message", zap.Int32("code", bad.Code), zap.Int64("msg_id", bad.MsgID))
	c.send(s, replyMsg(bad.Notification(), false))
	return nil
}

func (c *conn) handleContainer(s *session.Session, msg *mtproto.Message) error {
	obj, err := tl.Decode(msg.Body)
	if err != nil {
		return c.reject(s, &mtproto.BadMessage{Code: mtproto.CodeInvalidContainer, MsgID: msg.MsgID, SeqNo: msg.SeqNo})
	}
	container := obj.(*tl.MsgContainer)
	if err := c.srv.validator.CheckContainer(msg.MsgID, msg.SeqNo, container); err != nil {
		return c.reject(s, err)
	}

	inner := make([]*tl.Message, 0, len(container.Messages))
	var rejected []outMsg
	for _, m := range container.Messages {
		if err := c.srv.validator.CheckMsgID(m.MsgID, m.SeqNo); err != nil {
			var bad *mtproto.BadMessage
			if errors.As(err, &bad) {
				rejected = append(rejected, replyMsg(bad.Notification(), false))
			}
			continue
		}
		if s.Seen(m.MsgID) {
			continue
		}
		inner = append(inner, m)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.send(s, append(rejected, c.fanOut(s, inner)...)...)
	}()
	return nil
}

// PushUpdate queues an update for one of the connection's sessions. It
// never blocks; updates beyond the queue are dropped and recovered by the
// client through its update state.
func (c *conn) PushUpdate(s *session.Session, update tl.Object) {
	select {
	case c.updates <- pushed{sess: s, update: update}:
	default:
		c.log.Warn("update queue full, dropping update", zap.Int64("session_id", s.SessionID))
	}
}

// ChannelsChanged queues a channel subscription refresh for s. A request
// lost to a full queue is caught up by the periodic refresh.
func (c *conn) ChannelsChanged(s *session.Session) {
	select {
	case c.updates <- pushed{sess: s}:
	default:
		c.log.Warn("update queue full, deferring channel refresh", zap.Int64("session_id", s.SessionID))
	}
}

// updateLoop delivers queued updates and, every membership TTL, re-reads
// the channel membership of the connection's sessions.
func (c *conn) updateLoop() {
	defer c.wg.Done()
	var refresh <-chan time.Time
	if m := c.srv.deps.Membership; m != nil && m.TTL() > 0 {
		t := time.NewTicker(m.TTL())
		defer t.Stop()
		refresh = t.C
	}
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-refresh:
			for _, s := range c.liveSessions() {
				c.refreshChannels(s)
			}
		case p := <-c.updates:
			if p.update == nil {
				c.refreshChannels(p.sess)
				continue
			}
			obj, err := c.srv.deps.Layers.Downgrade(p.update, p.sess.Layer())
			if err != nil {
				c.log.Error("downgrade update", zap.Error(err))
				continue
			}
			c.send(p.sess, outMsg{obj: obj, content: true})
		}
	}
}

func (c *conn) liveSessions() []*session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

func uniqueID() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]))
}
