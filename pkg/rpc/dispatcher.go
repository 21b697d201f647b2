package rpc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReplyFunc delivers the result of a submitted call. Only the first reply of
// a call is used.
type ReplyFunc func(Result)

// Backend executes submitted calls. Submit may block until capacity is
// available; it must give up when ctx ends.
type Backend interface {
	Submit(ctx context.Context, call *Call, reply ReplyFunc) error
	Close() error
}

// Dispatcher assigns correlation ids and bounds the wait for each result.
type Dispatcher struct {
	backend Backend
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	pending map[string]chan Result

	total    atomic.Int64
	timeouts atomic.Int64
}

func NewDispatcher(backend Backend, timeout time.Duration, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		timeout: timeout,
		log:     log.Named("rpc"),
		pending: make(map[string]chan Result),
	}
}

// Invoke runs query for caller and always returns within the timeout. The
// error is non-nil only when ctx ended first; a call outliving the
// dispatcher timeout yields an RPC_TIMEOUT result instead.
func (d *Dispatcher) Invoke(ctx context.Context, caller Caller, query tl.Object) (Result, error) {
	call := &Call{ID: uuid.NewString(), Caller: caller, Query: query}
	d.total.Add(1)

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ch := make(chan Result, 1)
	d.mu.Lock()
	d.pending[call.ID] = ch
	d.mu.Unlock()
	defer d.forget(call.ID)

	if err := d.backend.Submit(ctx, call, func(r Result) { d.resolve(call.ID, r) }); err != nil {
		if parent.Err() != nil {
			return Result{}, parent.Err()
		}
		if ctx.Err() != nil {
			d.timeouts.Add(1)
			return Result{Err: ErrTimeout()}, nil
		}
		d.log.Error("submit failed", zap.String("call_id", call.ID), zap.Error(err))
		return Result{Err: ErrInternal()}, nil
	}

	select {
	case r := <-ch:
		if r.Err.Is(ErrTimeout()) {
			d.timeouts.Add(1)
		}
		return r, nil
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			d.log.Debug("call abandoned", zap.String("call_id", call.ID), zap.String("query", queryName(query)), zap.Error(err))
			return Result{}, err
		}
		d.timeouts.Add(1)
		d.log.Warn("call timed out", zap.String("call_id", call.ID), zap.String("query", queryName(query)))
		return Result{Err: ErrTimeout()}, nil
	}
}

func (d *Dispatcher) resolve(id string, r Result) {
	d.mu.Lock()
	ch, ok := d.pending[id]
	delete(d.pending, id)
	d.mu.Unlock()
	if !ok {
		d.log.Debug("dropping late reply", zap.String("call_id", id))
		return
	}
	ch <- r
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	InFlight int   `json:"in_flight"`
	Total    int64 `json:"total"`
	Timeouts int64 `json:"timeouts"`
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	inFlight := len(d.pending)
	d.mu.Unlock()
	return Stats{InFlight: inFlight, Total: d.total.Load(), Timeouts: d.timeouts.Load()}
}

func (d *Dispatcher) Close() error {
	return d.backend.Close()
}
