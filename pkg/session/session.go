// Package session tracks the MTProto sessions living on gateway
// connections.
package session

import (
	"sync"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

const recentMsgIDs = 1024

// Key identifies a session.
type Key struct {
	AuthKeyID int64
	SessionID int64
}

// Sink receives updates addressed to a session. The gateway connection
// owning the session implements it.
type Sink interface {
	PushUpdate(s *Session, update tl.Object)
	// ChannelsChanged asks for the session's channel subscriptions to be
	// refreshed.
	ChannelsChanged(s *Session)
}

// Authorization is the user bound to a permanent auth key.
type Authorization struct {
	PermAuthKeyID int64
	UserID        int64
	AuthID        int64
	IsBot         bool
}

// Session is one client session on one auth key. Layer, authorization and
// channel membership change during its life and are guarded by mu.
type Session struct {
	Key
	ConnID    string
	CreatedAt time.Time

	sink Sink

	mu            sync.Mutex
	permAuthKeyID int64
	auth          Authorization
	layer         int32
	seq           int32
	channels      map[int64]struct{}
	seen          map[int64]struct{}
	seenOrder     []int64
	firstMsgID    int64
	announced     bool
}

func newSession(key Key, connID string, sink Sink, layer int32) *Session {
	return &Session{
		Key:       key,
		ConnID:    connID,
		CreatedAt: time.Now(),
		sink:      sink,
		layer:     layer,
		channels:  make(map[int64]struct{}),
		seen:      make(map[int64]struct{}),
	}
}

// NextSeqNo returns the seq_no for the next outgoing message. Content
// related messages get odd numbers and advance the counter.
func (s *Session) NextSeqNo(contentRelated bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contentRelated {
		return s.seq * 2
	}
	n := s.seq*2 + 1
	s.seq++
	return n
}

// Seen records msgID and reports whether it was already received.
func (s *Session) Seen(msgID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstMsgID == 0 {
		s.firstMsgID = msgID
	}
	if _, dup := s.seen[msgID]; dup {
		return true
	}
	s.seen[msgID] = struct{}{}
	s.seenOrder = append(s.seenOrder, msgID)
	if len(s.seenOrder) > recentMsgIDs {
		delete(s.seen, s.seenOrder[0])
		s.seenOrder = s.seenOrder[1:]
	}
	return false
}

// Announce reports whether new_session_created is still due for s and
// marks it as sent.
func (s *Session) Announce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := !s.announced
	s.announced = true
	return due
}

// FirstMsgID is the id of the first message received in the session.
func (s *Session) FirstMsgID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstMsgID
}

func (s *Session) Layer() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layer
}

func (s *Session) SetLayer(layer int32) {
	s.mu.Lock()
	s.layer = layer
	s.mu.Unlock()
}

// PermAuthKeyID returns the permanent key the session's key resolves to,
// or zero for an unbound temporary key.
func (s *Session) PermAuthKeyID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permAuthKeyID
}

func (s *Session) SetPermAuthKeyID(id int64) {
	s.mu.Lock()
	s.permAuthKeyID = id
	s.mu.Unlock()
}

func (s *Session) Authorization() Authorization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *Session) SetAuthorization(a Authorization) {
	s.mu.Lock()
	s.auth = a
	s.mu.Unlock()
}

// Channels returns the channel ids the session is subscribed to.
func (s *Session) Channels() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.channels))
	for id := range s.channels {
		out = append(out, id)
	}
	return out
}

// SetChannels replaces the channel set and returns the ids added and
// removed.
func (s *Session) SetChannels(ids []int64) (added, removed []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
		if _, ok := s.channels[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range s.channels {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	s.channels = next
	return added, removed
}

// Push hands an update to the session's connection.
func (s *Session) Push(update tl.Object) {
	if s.sink != nil {
		s.sink.PushUpdate(s, update)
	}
}

// ChannelsChanged tells the session's connection that the user's channel
// set changed.
func (s *Session) ChannelsChanged() {
	if s.sink != nil {
		s.sink.ChannelsChanged(s)
	}
}
