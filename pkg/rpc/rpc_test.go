package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, call *Call) (tl.Object, error) {
		switch q := call.Query.(type) {
		case *tl.Ping:
			return &tl.Pong{PingID: q.PingID}, nil
		case *tl.AccountUpdateUsername:
			switch q.Username {
			case "rpc":
				return nil, tl.NewRPCError(420, "FLOOD_WAIT_3")
			case "fail":
				return nil, errors.New("database is on fire")
			case "panic":
				panic("boom")
			case "block":
				<-ctx.Done()
				return nil, ctx.Err()
			case "nil":
				return nil, nil
			}
		}
		return nil, ErrMethodInvalid()
	})
}

func TestDispatcherLocal(t *testing.T) {
	log := zaptest.NewLogger(t)
	d := NewDispatcher(NewLocalBackend(echoHandler(), 4, log), 200*time.Millisecond, log)
	defer d.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		query tl.Object
		want  Result
	}{
		{"success", &tl.Ping{PingID: 9}, Result{Object: &tl.Pong{PingID: 9}}},
		{"rpc error passes through", &tl.AccountUpdateUsername{Username: "rpc"}, Result{Err: tl.NewRPCError(420, "FLOOD_WAIT_3")}},
		{"plain error is internal", &tl.AccountUpdateUsername{Username: "fail"}, Result{Err: ErrInternal()}},
		{"panic is internal", &tl.AccountUpdateUsername{Username: "panic"}, Result{Err: ErrInternal()}},
		{"nil result is internal", &tl.AccountUpdateUsername{Username: "nil"}, Result{Err: ErrInternal()}},
		{"timeout", &tl.AccountUpdateUsername{Username: "block"}, Result{Err: ErrTimeout()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			got, err := d.Invoke(ctx, Caller{UserID: 1}, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Less(t, time.Since(start), time.Second)
		})
	}

	stats := d.Stats()
	assert.Equal(t, int64(len(tests)), stats.Total)
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Zero(t, stats.InFlight)
}

func TestDispatcherSaturatedPoolTimesOut(t *testing.T) {
	log := zaptest.NewLogger(t)
	release := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, call *Call) (tl.Object, error) {
		<-release
		return &tl.Pong{}, nil
	})
	d := NewDispatcher(NewLocalBackend(handler, 1, log), 100*time.Millisecond, log)

	first := make(chan Result, 1)
	go func() {
		r, _ := d.Invoke(context.Background(), Caller{}, &tl.Ping{})
		first <- r
	}()
	time.Sleep(20 * time.Millisecond)

	got, err := d.Invoke(context.Background(), Caller{}, &tl.Ping{})
	require.NoError(t, err)
	assert.Equal(t, ErrTimeout(), got.Err)

	close(release)
	<-first
	require.NoError(t, d.Close())
}

func TestDispatcherCallerCancelled(t *testing.T) {
	log := zaptest.NewLogger(t)
	release := make(chan struct{})
	defer close(release)
	handler := HandlerFunc(func(ctx context.Context, call *Call) (tl.Object, error) {
		<-release
		return &tl.Pong{}, nil
	})
	d := NewDispatcher(NewLocalBackend(handler, 1, log), time.Minute, log)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	start := time.Now()
	got, err := d.Invoke(ctx, Caller{}, &tl.Ping{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got.Err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, d.Stats().Timeouts, "a cancelled caller is not a timeout")
}

func TestRPCErrorsAreFreshValues(t *testing.T) {
	a := ErrInternal()
	a.Message = "MUTATED"
	assert.Equal(t, "INTERNAL", ErrInternal().Message)
	assert.ErrorIs(t, ErrTimeout(), ErrTimeout())
	assert.NotErrorIs(t, ErrTimeout(), ErrInternal())
}

func TestRedisBackendAndWorker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewRedisWorker(rdb, "", echoHandler(), 2, log)
	worker.poll = 50 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	backend, err := NewRedisBackend(ctx, rdb, "", log)
	require.NoError(t, err)
	d := NewDispatcher(backend, 2*time.Second, log)

	got, err := d.Invoke(ctx, Caller{UserID: 5, Layer: 160}, &tl.Ping{PingID: 77})
	require.NoError(t, err)
	require.Nil(t, got.Err)
	assert.Equal(t, &tl.Pong{PingID: 77}, got.Object)

	got, err = d.Invoke(ctx, Caller{UserID: 5}, &tl.AccountUpdateUsername{Username: "rpc"})
	require.NoError(t, err)
	assert.Equal(t, tl.NewRPCError(420, "FLOOD_WAIT_3"), got.Err)

	require.NoError(t, d.Close())
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerSkipsExpiredJobs(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	called := false
	w := NewRedisWorker(rdb, "", HandlerFunc(func(context.Context, *Call) (tl.Object, error) {
		called = true
		return &tl.Pong{}, nil
	}), 1, zaptest.NewLogger(t))

	w.process(context.Background(), `{"id":"x","reply_to":"r","query":"","deadline":1}`)
	assert.False(t, called)
}
