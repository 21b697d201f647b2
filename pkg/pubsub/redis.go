package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel updates travel on.
const DefaultChannel = "zentalk:updates"

type envelope struct {
	ID              string   `json:"id"`
	Targets         []Target `json:"targets"`
	ExceptAuthKeyID int64    `json:"except_auth_key_id,omitempty"`
	Object          []byte   `json:"object,omitempty"`
	Counter         string   `json:"counter,omitempty"`
	Value           int32    `json:"value,omitempty"`
	Membership      bool     `json:"membership,omitempty"`
}

// RedisBroker shares updates between gateway nodes over Redis pub/sub.
// Every node receives every update and delivers it to its own sessions.
type RedisBroker struct {
	local   *MemoryBroker
	rdb     *redis.Client
	channel string
	sub     *redis.PubSub
	log     *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRedisBroker subscribes to channel and starts delivering updates.
func NewRedisBroker(ctx context.Context, rdb *redis.Client, channel string, log *zap.Logger) (*RedisBroker, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := rdb.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so that no publish is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBroker{
		local:   NewMemoryBroker(),
		rdb:     rdb,
		channel: channel,
		sub:     sub,
		log:     log.Named("pubsub"),
		cancel:  cancel,
	}
	b.wg.Add(1)
	go b.receiveLoop(runCtx)
	return b, nil
}

func (b *RedisBroker) receiveLoop(ctx context.Context) {
	defer b.wg.Done()
	ch := b.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBroker) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("dropping malformed update envelope", zap.Error(err))
		return
	}
	u := &Update{
		Targets:         env.Targets,
		ExceptAuthKeyID: env.ExceptAuthKeyID,
		Counter:         env.Counter,
		Value:           env.Value,
		Membership:      env.Membership,
	}
	if !env.Membership {
		obj, err := tl.Decode(env.Object)
		if err != nil {
			b.log.Warn("dropping undecodable update", zap.String("id", env.ID), zap.Error(err))
			return
		}
		u.Object = obj
	}
	_ = b.local.Publish(context.Background(), u)
}

func (b *RedisBroker) Subscribe(ctx context.Context, s *session.Session, targets ...Target) error {
	return b.local.Subscribe(ctx, s, targets...)
}

func (b *RedisBroker) Unsubscribe(ctx context.Context, s *session.Session, targets ...Target) error {
	return b.local.Unsubscribe(ctx, s, targets...)
}

func (b *RedisBroker) UnsubscribeAll(ctx context.Context, s *session.Session) error {
	return b.local.UnsubscribeAll(ctx, s)
}

func (b *RedisBroker) Publish(ctx context.Context, u *Update) error {
	env := envelope{
		ID:              uuid.NewString(),
		Targets:         u.Targets,
		ExceptAuthKeyID: u.ExceptAuthKeyID,
		Counter:         u.Counter,
		Value:           u.Value,
		Membership:      u.Membership,
	}
	if !u.Membership {
		obj, err := tl.Marshal(u.Object)
		if err != nil {
			return err
		}
		env.Object = obj
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Close() error {
	b.cancel()
	err := b.sub.Close()
	b.wg.Wait()
	return err
}
