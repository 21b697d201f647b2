package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type inbox struct {
	mu      sync.Mutex
	got     map[session.Key][]tl.Object
	changed map[session.Key]int
}

func newInbox() *inbox {
	return &inbox{got: make(map[session.Key][]tl.Object), changed: make(map[session.Key]int)}
}

func (i *inbox) PushUpdate(s *session.Session, u tl.Object) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.got[s.Key] = append(i.got[s.Key], u)
}

func (i *inbox) ChannelsChanged(s *session.Session) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.changed[s.Key]++
}

func (i *inbox) changes(k session.Key) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.changed[k]
}

func (i *inbox) count(k session.Key) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.got[k])
}

func attach(m *session.Manager, box *inbox, authKeyID, sessionID, userID int64) *session.Session {
	s, _, _ := m.Attach(session.Key{AuthKeyID: authKeyID, SessionID: sessionID}, "conn", box)
	s.SetAuthorization(session.Authorization{UserID: userID})
	return s
}

func TestMemoryBrokerFanOut(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(tl.Layer)
	box := newInbox()
	b := NewMemoryBroker()

	s1 := attach(m, box, 1, 1, 100)
	s2 := attach(m, box, 2, 1, 100)
	s3 := attach(m, box, 3, 1, 200)
	require.NoError(t, b.Subscribe(ctx, s1, User(100), AuthKey(1)))
	require.NoError(t, b.Subscribe(ctx, s2, User(100), AuthKey(2)))
	require.NoError(t, b.Subscribe(ctx, s3, User(200), Channel(9)))

	update := &tl.UpdateShort{Update: &tl.UpdateUserName{UserID: 100, Usernames: []*tl.Username{}}, Date: 1}

	t.Run("except origin key", func(t *testing.T) {
		require.NoError(t, b.Publish(ctx, &Update{Targets: []Target{User(100)}, ExceptAuthKeyID: 1, Object: update}))
		assert.Equal(t, 0, box.count(s1.Key))
		assert.Equal(t, 1, box.count(s2.Key))
		assert.Equal(t, 0, box.count(s3.Key))
	})

	t.Run("union delivers once", func(t *testing.T) {
		require.NoError(t, b.Publish(ctx, &Update{Targets: []Target{User(100), AuthKey(2), Channel(9)}, Object: update}))
		assert.Equal(t, 1, box.count(s1.Key))
		assert.Equal(t, 2, box.count(s2.Key))
		assert.Equal(t, 1, box.count(s3.Key))
	})

	t.Run("unsubscribe all", func(t *testing.T) {
		require.NoError(t, b.UnsubscribeAll(ctx, s2))
		assert.Equal(t, 1, b.Subscriptions(User(100)))
		assert.Zero(t, b.Subscriptions(AuthKey(2)))

		require.NoError(t, b.Publish(ctx, &Update{Targets: []Target{User(100)}, Object: update}))
		assert.Equal(t, 2, box.count(s2.Key), "no further deliveries")
		assert.Equal(t, 2, box.count(s1.Key))
	})
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisBrokerAcrossNodes(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	log := zaptest.NewLogger(t)

	nodeA, err := NewRedisBroker(ctx, rdb, "", log)
	require.NoError(t, err)
	defer nodeA.Close()
	nodeB, err := NewRedisBroker(ctx, rdb, "", log)
	require.NoError(t, err)
	defer nodeB.Close()

	m := session.NewManager(tl.Layer)
	box := newInbox()
	s := attach(m, box, 5, 1, 300)
	require.NoError(t, nodeB.Subscribe(ctx, s, User(300)))

	raw := rdb.Subscribe(ctx, DefaultChannel)
	defer raw.Close()
	_, err = raw.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, nodeA.Publish(ctx, &Update{
		Targets: []Target{User(300)},
		Object:  &tl.UpdatesState{Pts: 3, Qts: 0, Date: 1, Seq: 1},
		Counter: "pts",
		Value:   3,
	}))

	assert.Eventually(t, func() bool { return box.count(s.Key) == 1 }, 2*time.Second, 10*time.Millisecond)
	box.mu.Lock()
	assert.Equal(t, &tl.UpdatesState{Pts: 3, Date: 1, Seq: 1}, box.got[s.Key][0])
	box.mu.Unlock()

	msg, err := raw.ReceiveMessage(ctx)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	assert.Equal(t, "pts", env.Counter)
	assert.Equal(t, int32(3), env.Value)
	assert.NotEmpty(t, env.ID)

	require.NoError(t, nodeA.Publish(ctx, &Update{Targets: []Target{User(300)}, Membership: true}))
	assert.Eventually(t, func() bool { return box.changes(s.Key) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, box.count(s.Key), "membership signals are not pushed as updates")
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewRedisCache(rdb, "test:")

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.True(t, mr.Exists("test:k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeChannels struct {
	mu    sync.Mutex
	ids   []int64
	calls int
}

func (f *fakeChannels) Channels(context.Context, int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]int64(nil), f.ids...), nil
}

func TestMembershipRefreshDiffs(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(0)
	defer cache.Close()
	source := &fakeChannels{ids: []int64{1, 2}}
	broker := NewMemoryBroker()
	mem := NewMembership(cache, source, broker, time.Minute)

	m := session.NewManager(tl.Layer)
	s := attach(m, newInbox(), 1, 1, 42)

	require.NoError(t, mem.Refresh(ctx, s))
	assert.Equal(t, 1, broker.Subscriptions(Channel(1)))
	assert.Equal(t, 1, broker.Subscriptions(Channel(2)))

	require.NoError(t, mem.Refresh(ctx, s))
	assert.Equal(t, 1, source.calls, "second refresh is served from cache")

	source.mu.Lock()
	source.ids = []int64{2, 3}
	source.mu.Unlock()
	require.NoError(t, mem.Invalidate(ctx, 42))
	require.NoError(t, mem.Refresh(ctx, s))

	assert.Zero(t, broker.Subscriptions(Channel(1)))
	assert.Equal(t, 1, broker.Subscriptions(Channel(2)))
	assert.Equal(t, 1, broker.Subscriptions(Channel(3)))
	assert.ElementsMatch(t, []int64{2, 3}, s.Channels())
}

func TestMembershipChangedSignalsSessions(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(0)
	defer cache.Close()
	source := &fakeChannels{ids: []int64{1}}
	broker := NewMemoryBroker()
	mem := NewMembership(cache, source, broker, time.Minute)

	m := session.NewManager(tl.Layer)
	box := newInbox()
	s := attach(m, box, 1, 1, 42)
	other := attach(m, box, 2, 1, 43)
	require.NoError(t, broker.Subscribe(ctx, s, User(42)))
	require.NoError(t, broker.Subscribe(ctx, other, User(43)))
	require.NoError(t, mem.Refresh(ctx, s))

	source.mu.Lock()
	source.ids = []int64{1, 7}
	source.mu.Unlock()
	require.NoError(t, mem.Changed(ctx, 42))

	assert.Equal(t, 1, box.changes(s.Key))
	assert.Zero(t, box.changes(other.Key))
	_, cached, err := cache.Get(ctx, membershipKey(42))
	require.NoError(t, err)
	assert.False(t, cached, "changed drops the cached list")

	require.NoError(t, mem.Refresh(ctx, s))
	assert.Equal(t, 1, broker.Subscriptions(Channel(7)))
	assert.Equal(t, 2, source.calls)
}
