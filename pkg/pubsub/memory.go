package pubsub

import (
	"context"
	"sync"

	"github.com/ZentaChain/zentalk-gateway/pkg/session"
)

// MemoryBroker delivers updates to sessions of this process.
type MemoryBroker struct {
	mu     sync.RWMutex
	index  map[Target]map[*session.Session]struct{}
	bySess map[*session.Session]map[Target]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		index:  make(map[Target]map[*session.Session]struct{}),
		bySess: make(map[*session.Session]map[Target]struct{}),
	}
}

func (b *MemoryBroker) Subscribe(_ context.Context, s *session.Session, targets ...Target) error {
	b.subscribe(s, targets)
	return nil
}

func (b *MemoryBroker) subscribe(s *session.Session, targets []Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range targets {
		subs, ok := b.index[t]
		if !ok {
			subs = make(map[*session.Session]struct{})
			b.index[t] = subs
		}
		subs[s] = struct{}{}
		ts, ok := b.bySess[s]
		if !ok {
			ts = make(map[Target]struct{})
			b.bySess[s] = ts
		}
		ts[t] = struct{}{}
	}
}

func (b *MemoryBroker) Unsubscribe(_ context.Context, s *session.Session, targets ...Target) error {
	b.unsubscribe(s, targets)
	return nil
}

func (b *MemoryBroker) unsubscribe(s *session.Session, targets []Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range targets {
		if subs, ok := b.index[t]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(b.index, t)
			}
		}
		if ts, ok := b.bySess[s]; ok {
			delete(ts, t)
			if len(ts) == 0 {
				delete(b.bySess, s)
			}
		}
	}
}

func (b *MemoryBroker) UnsubscribeAll(_ context.Context, s *session.Session) error {
	b.unsubscribeAll(s)
	return nil
}

func (b *MemoryBroker) unsubscribeAll(s *session.Session) {
	b.mu.RLock()
	targets := make([]Target, 0, len(b.bySess[s]))
	for t := range b.bySess[s] {
		targets = append(targets, t)
	}
	b.mu.RUnlock()
	b.unsubscribe(s, targets)
}

func (b *MemoryBroker) Publish(_ context.Context, u *Update) error {
	for _, s := range b.resolve(u) {
		if u.Membership {
			s.ChannelsChanged()
			continue
		}
		s.Push(u.Object)
	}
	return nil
}

// resolve returns the union of sessions matching u.
func (b *MemoryBroker) resolve(u *Update) []*session.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[*session.Session]struct{})
	var out []*session.Session
	for _, t := range u.Targets {
		for s := range b.index[t] {
			if u.ExceptAuthKeyID != 0 && s.AuthKeyID == u.ExceptAuthKeyID {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Subscriptions returns the number of sessions subscribed to t.
func (b *MemoryBroker) Subscriptions(t Target) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index[t])
}

func (b *MemoryBroker) Close() error { return nil }
