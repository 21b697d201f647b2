package updates

import (
	"context"
	"sync"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

const defaultLogLimit = 1000

// MemoryStore keeps counters and a bounded update log per authorization.
type MemoryStore struct {
	mu       sync.Mutex
	states   map[int64]State
	log      map[int64][]Entry
	logLimit int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[int64]State),
		log:      make(map[int64][]Entry),
		logLimit: defaultLogLimit,
		now:      time.Now,
	}
}

func (m *MemoryStore) State(_ context.Context, authID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[authID]
	if !ok {
		st.Date = int32(m.now().Unix())
	}
	return st, nil
}

func (m *MemoryStore) Apply(ctx context.Context, authID int64, c Counter, effect Effect, build Builder) (State, tl.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.states[authID]
	if err := st.bump(c); err != nil {
		return State{}, nil, err
	}
	st.Date = int32(m.now().Unix())
	if effect != nil {
		if err := effect(ctx, nil); err != nil {
			return State{}, nil, err
		}
	}
	var obj tl.Object
	if build != nil {
		obj = build(st)
	}
	m.states[authID] = st
	if obj != nil && c == CounterPts {
		entries := append(m.log[authID], Entry{Pts: st.Pts, Date: st.Date, Object: obj})
		if len(entries) > m.logLimit {
			entries = entries[len(entries)-m.logLimit:]
		}
		m.log[authID] = entries
	}
	return st, obj, nil
}

func (m *MemoryStore) Since(_ context.Context, authID int64, pts int32) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.log[authID] {
		if e.Pts > pts {
			out = append(out, e)
		}
	}
	return out, nil
}
