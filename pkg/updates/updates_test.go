package updates

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptsUpdate(st State) tl.Object {
	return &tl.UpdateShort{Update: &tl.UpdateUserName{UserID: 1}, Date: st.Date}
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	const callers = 64
	ctx := context.Background()
	store := NewMemoryStore()

	for _, c := range []Counter{CounterPts, CounterQts, CounterSeq} {
		t.Run(c.String(), func(t *testing.T) {
			var (
				mu   sync.Mutex
				seen []int
				wg   sync.WaitGroup
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					st, _, err := store.Apply(ctx, 7, c, nil, ptsUpdate)
					assert.NoError(t, err)
					mu.Lock()
					seen = append(seen, int(st.Get(c)))
					mu.Unlock()
				}()
			}
			wg.Wait()

			sort.Ints(seen)
			for i, v := range seen {
				assert.Equal(t, i+1, v, "values are unique and gapless")
			}
			st, err := store.State(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, int32(callers), st.Get(c))
		})
	}
}

func TestMemoryStoreFailedEffectLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	_, _, err := store.Apply(ctx, 1, CounterPts, func(context.Context, Execer) error { return boom }, ptsUpdate)
	require.ErrorIs(t, err, boom)

	st, err := store.State(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, st.Pts)

	entries, err := store.Since(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStoreSince(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		_, _, err := store.Apply(ctx, 3, CounterPts, nil, ptsUpdate)
		require.NoError(t, err)
	}

	entries, err := store.Since(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int32(3), entries[0].Pts)
	assert.Equal(t, int32(5), entries[2].Pts)

	_, err = store.Since(ctx, 3, 5)
	require.NoError(t, err)
}

func TestUnknownCounter(t *testing.T) {
	_, _, err := NewMemoryStore().Apply(context.Background(), 1, Counter(9), nil, nil)
	assert.ErrorIs(t, err, ErrUnknownCounter)
}

type recordingSink struct {
	mu  sync.Mutex
	got []tl.Object
}

func (r *recordingSink) PushUpdate(_ *session.Session, u tl.Object) {
	r.mu.Lock()
	r.got = append(r.got, u)
	r.mu.Unlock()
}

func (r *recordingSink) ChannelsChanged(*session.Session) {}

// taggingBroker records every published update before delivering it.
type taggingBroker struct {
	*pubsub.MemoryBroker
	published []*pubsub.Update
}

func (b *taggingBroker) Publish(ctx context.Context, u *pubsub.Update) error {
	b.published = append(b.published, u)
	return b.MemoryBroker.Publish(ctx, u)
}

func TestPublisherCommitsThenPublishes(t *testing.T) {
	ctx := context.Background()
	broker := &taggingBroker{MemoryBroker: pubsub.NewMemoryBroker()}
	p := NewPublisher(NewMemoryStore(), broker, zap.NewNop())

	sessions := session.NewManager(tl.Layer)
	origin := &recordingSink{}
	other := &recordingSink{}
	s1, _, _ := sessions.Attach(session.Key{AuthKeyID: 10, SessionID: 1}, "a", origin)
	s2, _, _ := sessions.Attach(session.Key{AuthKeyID: 20, SessionID: 1}, "b", other)
	require.NoError(t, broker.Subscribe(ctx, s1, pubsub.User(5)))
	require.NoError(t, broker.Subscribe(ctx, s2, pubsub.User(5)))

	applied := false
	st, err := p.Publish(ctx, Event{
		AuthID:          1,
		Counter:         CounterPts,
		Effect:          func(context.Context, Execer) error { applied = true; return nil },
		Build:           ptsUpdate,
		Targets:         []pubsub.Target{pubsub.User(5)},
		ExceptAuthKeyID: 10,
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int32(1), st.Pts)
	assert.Empty(t, origin.got)
	assert.Len(t, other.got, 1)
	require.Len(t, broker.published, 1)
	assert.Equal(t, "pts", broker.published[0].Counter)
	assert.Equal(t, int32(1), broker.published[0].Value)

	_, err = p.Publish(ctx, Event{
		AuthID:  1,
		Counter: CounterQts,
		Build:   ptsUpdate,
		Targets: []pubsub.Target{pubsub.User(5)},
	})
	require.NoError(t, err)
	require.Len(t, broker.published, 2)
	assert.Equal(t, "qts", broker.published[1].Counter)
	assert.Equal(t, int32(1), broker.published[1].Value)

	_, err = p.Publish(ctx, Event{
		AuthID:  1,
		Counter: CounterPts,
		Effect:  func(context.Context, Execer) error { return errors.New("rejected") },
		Build:   ptsUpdate,
		Targets: []pubsub.Target{pubsub.User(5)},
	})
	require.Error(t, err)
	assert.Len(t, other.got, 2, "failed effects publish nothing")
	assert.Len(t, broker.published, 2)
}
