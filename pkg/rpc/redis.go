package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const DefaultQueue = "zentalk:rpc:queue"

type job struct {
	ID       string `json:"id"`
	ReplyTo  string `json:"reply_to"`
	Caller   Caller `json:"caller"`
	Query    []byte `json:"query"`
	Deadline int64  `json:"deadline"`
}

type reply struct {
	ID           string `json:"id"`
	Object       []byte `json:"object,omitempty"`
	ErrorCode    int32  `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func replyOf(id string, r Result) reply {
	out := reply{ID: id}
	if r.Err == nil {
		obj, err := tl.Marshal(r.Object)
		if err == nil {
			out.Object = obj
			return out
		}
		r.Err = ErrInternal()
	}
	out.ErrorCode, out.ErrorMessage = r.Err.Code, r.Err.Message
	return out
}

func (r reply) result() Result {
	if r.ErrorCode != 0 {
		return Result{Err: tl.NewRPCError(r.ErrorCode, r.ErrorMessage)}
	}
	obj, err := tl.Decode(r.Object)
	if err != nil {
		return Result{Err: ErrInternal()}
	}
	return Result{Object: obj}
}

// RedisBackend pushes calls onto a Redis list consumed by RedisWorker
// processes and receives their replies on a per-node channel.
type RedisBackend struct {
	rdb     *redis.Client
	queue   string
	replyTo string
	sub     *redis.PubSub
	log     *zap.Logger

	mu      sync.Mutex
	pending map[string]ReplyFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisBackend(ctx context.Context, rdb *redis.Client, queue string, log *zap.Logger) (*RedisBackend, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	b := &RedisBackend{
		rdb:     rdb,
		queue:   queue,
		replyTo: queue + ":reply:" + uuid.NewString(),
		log:     log.Named("rpc.redis"),
		pending: make(map[string]ReplyFunc),
	}
	b.sub = rdb.Subscribe(ctx, b.replyTo)
	if _, err := b.sub.Receive(ctx); err != nil {
		b.sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.replyTo, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.receiveLoop(runCtx)
	return b, nil
}

func (b *RedisBackend) receiveLoop(ctx context.Context) {
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
			var rep reply
			if err := json.Unmarshal([]byte(msg.Payload), &rep); err != nil {
				b.log.Warn("dropping malformed reply", zap.Error(err))
				continue
			}
			b.mu.Lock()
			fn, ok := b.pending[rep.ID]
			delete(b.pending, rep.ID)
			b.mu.Unlock()
			if ok {
				fn(rep.result())
			}
		}
	}
}

func (b *RedisBackend) Submit(ctx context.Context, call *Call, fn ReplyFunc) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Minute)
	}
	query, err := tl.Marshal(call.Query)
	if err != nil {
		return err
	}
	data, err := json.Marshal(job{
		ID:       call.ID,
		ReplyTo:  b.replyTo,
		Caller:   call.Caller,
		Query:    query,
		Deadline: deadline.UnixMilli(),
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.pending[call.ID] = fn
	b.mu.Unlock()
	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		delete(b.pending, call.ID)
		b.mu.Unlock()
	})

	if err := b.rdb.RPush(ctx, b.queue, data).Err(); err != nil {
		return fmt.Errorf("enqueue call: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	b.cancel()
	err := b.sub.Close()
	b.wg.Wait()
	return err
}

// RedisWorker executes calls queued by RedisBackend.
type RedisWorker struct {
	rdb     *redis.Client
	queue   string
	handler Handler
	sem     *semaphore.Weighted
	poll    time.Duration
	log     *zap.Logger
}

func NewRedisWorker(rdb *redis.Client, queue string, handler Handler, concurrency int, log *zap.Logger) *RedisWorker {
	if queue == "" {
		queue = DefaultQueue
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &RedisWorker{
		rdb:     rdb,
		queue:   queue,
		handler: handler,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		poll:    time.Second,
		log:     log.Named("rpc.worker"),
	}
}

// Run consumes the queue until ctx ends, then waits for running calls.
func (w *RedisWorker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		res, err := w.rdb.BLPop(ctx, w.poll, w.queue).Result()
		if err != nil {
			w.sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			w.log.Error("queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.poll):
			}
			continue
		}

		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			defer w.sem.Release(1)
			w.process(ctx, payload)
		}(res[1])
	}
}

func (w *RedisWorker) process(ctx context.Context, payload string) {
	var j job
	if err := json.Unmarshal([]byte(payload), &j); err != nil {
		w.log.Warn("dropping malformed job", zap.Error(err))
		return
	}
	deadline := time.UnixMilli(j.Deadline)
	if time.Now().After(deadline) {
		w.log.Debug("skipping expired job", zap.String("call_id", j.ID))
		return
	}

	call := &Call{ID: j.ID, Caller: j.Caller}
	var res Result
	query, err := tl.Decode(j.Query)
	if err != nil {
		w.log.Warn("undecodable query", zap.String("call_id", j.ID), zap.Error(err))
		res = Result{Err: tl.NewRPCError(400, "INPUT_CONSTRUCTOR_INVALID")}
	} else {
		call.Query = query
		callCtx, cancel := context.WithDeadline(ctx, deadline)
		res = Run(callCtx, w.handler, call, w.log)
		cancel()
	}

	data, err := json.Marshal(replyOf(j.ID, res))
	if err != nil {
		w.log.Error("encode reply", zap.Error(err))
		return
	}
	if err := w.rdb.Publish(context.WithoutCancel(ctx), j.ReplyTo, data).Err(); err != nil {
		w.log.Error("publish reply", zap.String("call_id", j.ID), zap.Error(err))
	}
}
