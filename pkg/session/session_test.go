package session

import (
	"sort"
	"sync"
	"testing"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []tl.Object
	changed int
}

func (r *recordingSink) PushUpdate(_ *Session, u tl.Object) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recordingSink) ChannelsChanged(*Session) {
	r.mu.Lock()
	r.changed++
	r.mu.Unlock()
}

func TestNextSeqNo(t *testing.T) {
	s := newSession(Key{1, 2}, "c", nil, 177)

	got := []int32{
		s.NextSeqNo(true),
		s.NextSeqNo(false),
		s.NextSeqNo(true),
		s.NextSeqNo(true),
		s.NextSeqNo(false),
	}
	assert.Equal(t, []int32{1, 2, 3, 5, 6}, got)
}

func TestSeenDetectsDuplicates(t *testing.T) {
	s := newSession(Key{1, 2}, "c", nil, 177)
	assert.False(t, s.Seen(4))
	assert.True(t, s.Seen(4))
	assert.Equal(t, int64(4), s.FirstMsgID())

	for i := int64(1); i <= recentMsgIDs; i++ {
		s.Seen(4 + i*4)
	}
	assert.False(t, s.Seen(4), "oldest id is evicted from the window")
}

func TestSetChannelsDiff(t *testing.T) {
	s := newSession(Key{1, 2}, "c", nil, 177)

	added, removed := s.SetChannels([]int64{10, 20})
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	assert.Equal(t, []int64{10, 20}, added)
	assert.Empty(t, removed)

	added, removed = s.SetChannels([]int64{20, 30})
	assert.Equal(t, []int64{30}, added)
	assert.Equal(t, []int64{10}, removed)
	assert.ElementsMatch(t, []int64{20, 30}, s.Channels())
}

func TestAnnounceOnce(t *testing.T) {
	s := newSession(Key{1, 2}, "c", nil, 177)
	assert.True(t, s.Announce())
	assert.False(t, s.Announce())
}

func TestPushReachesSink(t *testing.T) {
	sink := &recordingSink{}
	s := newSession(Key{1, 2}, "c", sink, 177)
	s.Push(&tl.UpdatesState{Pts: 1})
	require.Len(t, sink.updates, 1)
	assert.Equal(t, &tl.UpdatesState{Pts: 1}, sink.updates[0])

	s.ChannelsChanged()
	assert.Equal(t, 1, sink.changed)
	assert.Len(t, sink.updates, 1)
}

func TestManagerAttach(t *testing.T) {
	m := NewManager(160)
	key := Key{AuthKeyID: 1, SessionID: 2}

	s, created, replaced := m.Attach(key, "conn-a", nil)
	assert.True(t, created)
	assert.Nil(t, replaced)
	assert.Equal(t, int32(160), s.Layer())

	again, created, replaced := m.Attach(key, "conn-a", nil)
	assert.False(t, created)
	assert.Nil(t, replaced)
	assert.Same(t, s, again)

	next, created, replaced := m.Attach(key, "conn-b", nil)
	assert.True(t, created)
	assert.Same(t, s, replaced)
	assert.NotSame(t, s, next)

	assert.False(t, m.Remove(s), "replaced session is no longer registered")
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Remove(next))
	assert.Zero(t, m.Len())
}

func TestManagerList(t *testing.T) {
	m := NewManager(177)
	a, _, _ := m.Attach(Key{1, 1}, "c1", nil)
	m.Attach(Key{1, 2}, "c1", nil)
	m.Attach(Key{2, 1}, "c2", nil)
	a.SetAuthorization(Authorization{UserID: 42})

	list := m.List()
	require.Len(t, list, 3)

	var found bool
	for _, info := range list {
		if info.AuthKeyID == 1 && info.SessionID == 1 {
			assert.Equal(t, int64(42), info.UserID)
			found = true
		}
	}
	assert.True(t, found)
}
