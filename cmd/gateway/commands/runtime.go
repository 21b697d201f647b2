package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/config"
	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/storage"
	"github.com/ZentaChain/zentalk-gateway/pkg/updates"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runtime holds the components shared by serve and worker.
type runtime struct {
	db        *storage.DB
	rdb       *redis.Client
	broker    pubsub.Broker
	members   *pubsub.Membership
	publisher *updates.Publisher
	handler   rpc.Handler

	closers []func() error
}

func newRuntime(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	opts := storage.DefaultOptions()
	opts.UpdateTTL = cfg.Storage.UpdateTTL.D()
	if rt.db, err = storage.Open(cfg.Storage.Path, opts, log); err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.db.Close)

	if cfg.UsesRedis() {
		rt.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, rt.rdb.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err = rt.rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	switch cfg.PubSub.Backend {
	case config.BackendRedis:
		b, err := pubsub.NewRedisBroker(ctx, rt.rdb, cfg.PubSub.Channel, log)
		if err != nil {
			return nil, err
		}
		rt.broker = b
	default:
		rt.broker = pubsub.NewMemoryBroker()
	}
	rt.closers = append(rt.closers, rt.broker.Close)

	rt.members = rt.membership(cfg)
	rt.publisher = updates.NewPublisher(rt.db.Updates(), rt.broker, log)
	rt.handler = rpc.NewCoreHandler(rt.db.Users(), rt.publisher, rt.members, nil)
	return rt, nil
}

// membership builds the channel membership tracker on the configured cache.
// Workers share it so that joins and leaves reach the gateway sessions.
func (rt *runtime) membership(cfg config.Config) *pubsub.Membership {
	var cache pubsub.Cache
	if rt.rdb != nil {
		cache = pubsub.NewRedisCache(rt.rdb, "zentalk:members:")
	} else {
		mc := pubsub.NewMemoryCache(time.Minute)
		rt.closers = append(rt.closers, func() error { mc.Close(); return nil })
		cache = mc
	}
	return pubsub.NewMembership(cache, rt.db.Users(), rt.broker, cfg.PubSub.MembershipTTL.D())
}

// Close releases resources in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
	rt.closers = nil
}
