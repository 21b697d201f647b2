package rpc

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// LocalBackend runs calls in-process with at most workers concurrent
// handlers.
type LocalBackend struct {
	handler Handler
	sem     *semaphore.Weighted
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewLocalBackend(handler Handler, workers int, log *zap.Logger) *LocalBackend {
	if workers < 1 {
		workers = 1
	}
	return &LocalBackend{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(workers)),
		log:     log.Named("rpc.local"),
	}
}

func (b *LocalBackend) Submit(ctx context.Context, call *Call, reply ReplyFunc) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.sem.Release(1)
		reply(Run(ctx, b.handler, call, b.log))
	}()
	return nil
}

// Close waits for running handlers.
func (b *LocalBackend) Close() error {
	b.wg.Wait()
	return nil
}
