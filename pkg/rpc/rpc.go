// Package rpc correlates decoded requests with their results. A Dispatcher
// hands calls to a Backend, which runs a Handler in-process or in a worker
// reached through Redis, and waits a bounded time for the reply.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"go.uber.org/zap"
)

// ErrInternal is the generic server error surfaced to clients.
func ErrInternal() *tl.RPCError { return tl.NewRPCError(500, "INTERNAL") }

// ErrTimeout reports a call that produced no result in time.
func ErrTimeout() *tl.RPCError { return tl.NewRPCError(500, "RPC_TIMEOUT") }

// Caller is the session context of a call.
type Caller struct {
	AuthKeyID     int64 `json:"auth_key_id"`
	PermAuthKeyID int64 `json:"perm_auth_key_id"`
	SessionID     int64 `json:"session_id"`
	UserID        int64 `json:"user_id"`
	AuthID        int64 `json:"auth_id"`
	IsBot         bool  `json:"is_bot"`
	Layer         int32 `json:"layer"`
}

// Authorized reports whether a user is signed in on the caller's key.
func (c Caller) Authorized() bool { return c.UserID != 0 }

// Call is one request with its correlation id.
type Call struct {
	ID     string
	Caller Caller
	Query  tl.Object
}

// Result is either an object or an RPC error.
type Result struct {
	Object tl.Object
	Err    *tl.RPCError
}

// Handler executes a query. Returned *tl.RPCError values reach the client
// unchanged; any other error becomes 500 INTERNAL.
type Handler interface {
	Handle(ctx context.Context, call *Call) (tl.Object, error)
}

type HandlerFunc func(ctx context.Context, call *Call) (tl.Object, error)

func (f HandlerFunc) Handle(ctx context.Context, call *Call) (tl.Object, error) { return f(ctx, call) }

// Run calls h and folds its outcome into a Result. Panics are recovered.
func Run(ctx context.Context, h Handler, call *Call, log *zap.Logger) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic",
				zap.String("call_id", call.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res = Result{Err: ErrInternal()}
		}
	}()
	obj, err := h.Handle(ctx, call)
	return resultOf(call, obj, err, log)
}

func resultOf(call *Call, obj tl.Object, err error, log *zap.Logger) Result {
	if err == nil {
		if obj == nil {
			log.Error("handler returned no result", zap.String("call_id", call.ID), zap.String("query", queryName(call.Query)))
			return Result{Err: ErrInternal()}
		}
		return Result{Object: obj}
	}
	var rpcErr *tl.RPCError
	if errors.As(err, &rpcErr) {
		return Result{Err: rpcErr}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Err: ErrTimeout()}
	}
	log.Error("handler failed", zap.String("call_id", call.ID), zap.String("query", queryName(call.Query)), zap.Error(err))
	return Result{Err: ErrInternal()}
}

func queryName(q tl.Object) string {
	if q == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T#%08x", q, q.CRC())
}
