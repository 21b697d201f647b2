// Package updates owns the per-authorization update counters and the
// commit-then-publish path that every cross-session state change takes.
package updates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

var ErrUnknownCounter = errors.New("updates: unknown counter")

// Counter names one of the three sequences of an authorization.
type Counter uint8

const (
	CounterPts Counter = iota
	CounterQts
	CounterSeq
)

func (c Counter) String() string {
	switch c {
	case CounterPts:
		return "pts"
	case CounterQts:
		return "qts"
	case CounterSeq:
		return "seq"
	}
	return fmt.Sprintf("counter(%d)", uint8(c))
}

// State is the (pts, qts, seq) triple of an authorization. Date is the unix
// time of the last change.
type State struct {
	Pts  int32
	Qts  int32
	Seq  int32
	Date int32
}

// Get returns the value of counter c.
func (s State) Get(c Counter) int32 {
	switch c {
	case CounterPts:
		return s.Pts
	case CounterQts:
		return s.Qts
	default:
		return s.Seq
	}
}

func (s *State) bump(c Counter) error {
	switch c {
	case CounterPts:
		s.Pts++
	case CounterQts:
		s.Qts++
	case CounterSeq:
		s.Seq++
	default:
		return ErrUnknownCounter
	}
	return nil
}

// Object renders the state as updates.state.
func (s State) Object() *tl.UpdatesState {
	return &tl.UpdatesState{Pts: s.Pts, Qts: s.Qts, Date: s.Date, Seq: s.Seq}
}

// Execer runs statements inside the transaction that increments a counter.
// Stores without a database pass nil.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Effect persists the state change an update describes.
type Effect func(ctx context.Context, tx Execer) error

// Builder produces the update object for the post-increment state.
type Builder func(State) tl.Object

// Entry is a logged update.
type Entry struct {
	Pts    int32
	Date   int32
	Object tl.Object
}

// Store persists counters. Apply runs effect, increments counter c and logs
// the built update as one transaction: either all of it is visible or none.
type Store interface {
	State(ctx context.Context, authID int64) (State, error)
	Apply(ctx context.Context, authID int64, c Counter, effect Effect, build Builder) (State, tl.Object, error)
	Since(ctx context.Context, authID int64, pts int32) ([]Entry, error)
}
