package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/session"
)

// ChannelSource returns the channels a user belongs to.
type ChannelSource interface {
	Channels(ctx context.Context, userID int64) ([]int64, error)
}

// Membership keeps session channel subscriptions in step with channel
// membership. Membership lists are cached for TTL; a refresh subscribes
// and unsubscribes only the difference.
type Membership struct {
	cache  Cache
	source ChannelSource
	broker Broker
	ttl    time.Duration
}

func NewMembership(cache Cache, source ChannelSource, broker Broker, ttl time.Duration) *Membership {
	return &Membership{cache: cache, source: source, broker: broker, ttl: ttl}
}

func membershipKey(userID int64) string {
	return fmt.Sprintf("channels:%d", userID)
}

// Channels returns the user's channel ids, from cache when fresh.
func (m *Membership) Channels(ctx context.Context, userID int64) ([]int64, error) {
	key := membershipKey(userID)
	if raw, ok, err := m.cache.Get(ctx, key); err == nil && ok {
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err == nil {
			return ids, nil
		}
	}
	ids, err := m.source.Channels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load channels of user %d: %w", userID, err)
	}
	if raw, err := json.Marshal(ids); err == nil {
		_ = m.cache.Set(ctx, key, raw, m.ttl)
	}
	return ids, nil
}

// TTL is how long a cached membership list stays fresh. Sessions re-read
// their channels at least this often.
func (m *Membership) TTL() time.Duration { return m.ttl }

// Invalidate drops the cached list of a user.
func (m *Membership) Invalidate(ctx context.Context, userID int64) error {
	return m.cache.Delete(ctx, membershipKey(userID))
}

// Changed is called after userID joined or left a channel. It drops the
// cached list and signals the user's sessions on every node to refresh.
func (m *Membership) Changed(ctx context.Context, userID int64) error {
	if err := m.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate channels of user %d: %w", userID, err)
	}
	return m.broker.Publish(ctx, &Update{Targets: []Target{User(userID)}, Membership: true})
}

// Refresh resubscribes s to its user's current channels.
func (m *Membership) Refresh(ctx context.Context, s *session.Session) error {
	userID := s.Authorization().UserID
	var ids []int64
	if userID != 0 {
		var err error
		if ids, err = m.Channels(ctx, userID); err != nil {
			return err
		}
	}
	added, removed := s.SetChannels(ids)
	if len(removed) > 0 {
		if err := m.broker.Unsubscribe(ctx, s, channelTargets(removed)...); err != nil {
			return err
		}
	}
	if len(added) > 0 {
		if err := m.broker.Subscribe(ctx, s, channelTargets(added)...); err != nil {
			return err
		}
	}
	return nil
}

func channelTargets(ids []int64) []Target {
	out := make([]Target, len(ids))
	for i, id := range ids {
		out[i] = Channel(id)
	}
	return out
}
