package rpc

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/storage"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/updates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sink struct {
	mu      sync.Mutex
	got     []tl.Object
	changed int
}

func (s *sink) PushUpdate(_ *session.Session, u tl.Object) {
	s.mu.Lock()
	s.got = append(s.got, u)
	s.mu.Unlock()
}

func (s *sink) ChannelsChanged(*session.Session) {
	s.mu.Lock()
	s.changed++
	s.mu.Unlock()
}

type coreFixture struct {
	handler *CoreHandler
	broker  *pubsub.MemoryBroker
	members *pubsub.Membership
	db      *storage.DB
	caller  Caller
}

func newCoreFixture(t *testing.T, next Handler) *coreFixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	db, err := storage.Open(filepath.Join(t.TempDir(), "core.db"), storage.DefaultOptions(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Users().Put(ctx, &storage.UserRecord{ID: 1, AccessHash: 11, FirstName: "Ann"}))
	require.NoError(t, db.Users().Put(ctx, &storage.UserRecord{ID: 2, AccessHash: 22, FirstName: "Bob", Username: "bobby"}))

	broker := pubsub.NewMemoryBroker()
	cache := pubsub.NewMemoryCache(0)
	t.Cleanup(cache.Close)
	members := pubsub.NewMembership(cache, db.Users(), broker, time.Minute)
	pub := updates.NewPublisher(db.Updates(), broker, log)
	return &coreFixture{
		handler: NewCoreHandler(db.Users(), pub, members, next),
		broker:  broker,
		members: members,
		db:      db,
		caller:  Caller{AuthKeyID: 100, PermAuthKeyID: 100, UserID: 1, AuthID: 1, Layer: tl.Layer},
	}
}

func (f *coreFixture) call(t *testing.T, caller Caller, q tl.Object) (tl.Object, error) {
	t.Helper()
	return f.handler.Handle(context.Background(), &Call{ID: "test", Caller: caller, Query: q})
}

func TestCoreGetUsers(t *testing.T) {
	f := newCoreFixture(t, nil)

	got, err := f.call(t, f.caller, &tl.UsersGetUsers{ID: []tl.Object{
		&tl.InputUserSelf{},
		&tl.InputUser{UserID: 2, AccessHash: 22},
		&tl.InputUser{UserID: 2, AccessHash: 0},
		&tl.InputUser{UserID: 3},
	}})
	require.NoError(t, err)

	vec, ok := got.(*tl.Vector)
	require.True(t, ok)
	require.Len(t, vec.Items, 4)

	self := vec.Items[0].(*tl.User)
	assert.Equal(t, int64(1), self.ID)
	assert.True(t, self.Flags.Has(tl.UserFlagSelf))
	assert.Equal(t, "Ann", self.FirstName)

	bob := vec.Items[1].(*tl.User)
	assert.Equal(t, "bobby", bob.Username)
	assert.False(t, bob.Flags.Has(tl.UserFlagSelf))

	assert.Equal(t, &tl.UserEmpty{ID: 2}, vec.Items[2], "wrong access hash")
	assert.Equal(t, &tl.UserEmpty{ID: 3}, vec.Items[3], "unknown user")
}

func TestCoreUpdateUsername(t *testing.T) {
	ctx := context.Background()
	f := newCoreFixture(t, nil)

	sessions := session.NewManager(tl.Layer)
	origin, other := &sink{}, &sink{}
	s1, _, _ := sessions.Attach(session.Key{AuthKeyID: 100, SessionID: 1}, "a", origin)
	s2, _, _ := sessions.Attach(session.Key{AuthKeyID: 200, SessionID: 1}, "b", other)
	require.NoError(t, f.broker.Subscribe(ctx, s1, pubsub.User(1)))
	require.NoError(t, f.broker.Subscribe(ctx, s2, pubsub.User(1)))

	got, err := f.call(t, f.caller, &tl.AccountUpdateUsername{Username: "ann_new"})
	require.NoError(t, err)
	assert.Equal(t, "ann_new", got.(*tl.User).Username)

	assert.Empty(t, origin.got)
	require.Len(t, other.got, 1)
	short := other.got[0].(*tl.UpdateShort)
	name := short.Update.(*tl.UpdateUserName)
	assert.Equal(t, int64(1), name.UserID)
	assert.Equal(t, "ann_new", tl.ActiveUsername(name.Usernames))

	state, err := f.call(t, f.caller, &tl.UpdatesGetState{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), state.(*tl.UpdatesState).Pts)

	tests := []struct {
		name     string
		username string
		want     *tl.RPCError
	}{
		{"occupied", "BOBBY", ErrUsernameOccupied()},
		{"invalid", "1bad", ErrUsernameInvalid()},
		{"too short", "abc", ErrUsernameInvalid()},
		{"unchanged", "@ann_new", ErrUsernameNotModified()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.call(t, f.caller, &tl.AccountUpdateUsername{Username: tt.username})
			assert.Equal(t, tt.want, err)
		})
	}

	state, err = f.call(t, f.caller, &tl.UpdatesGetState{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), state.(*tl.UpdatesState).Pts, "failed renames do not move pts")
	assert.Len(t, other.got, 1)
}

func TestCoreAuthorizationAndFallthrough(t *testing.T) {
	var delegated bool
	next := HandlerFunc(func(ctx context.Context, call *Call) (tl.Object, error) {
		delegated = true
		return tl.NewBool(true), nil
	})
	f := newCoreFixture(t, next)

	for _, q := range []tl.Object{
		&tl.UpdatesGetState{},
		&tl.UpdatesGetDifference{},
		&tl.UsersGetUsers{},
		&tl.AccountUpdateUsername{},
		&tl.ChannelsJoinChannel{Channel: &tl.InputChannel{ChannelID: 1}},
		&tl.ChannelsLeaveChannel{Channel: &tl.InputChannel{ChannelID: 1}},
	} {
		_, err := f.call(t, Caller{AuthKeyID: 5}, q)
		assert.Equal(t, ErrAuthKeyUnregistered(), err)
	}

	got, err := f.call(t, f.caller, &tl.Ping{})
	require.NoError(t, err)
	assert.True(t, delegated)
	assert.Equal(t, tl.NewBool(true), got)

	_, err = newCoreFixture(t, nil).call(t, f.caller, &tl.Ping{})
	assert.Equal(t, ErrMethodInvalid(), err)
}

func TestCoreGetDifference(t *testing.T) {
	f := newCoreFixture(t, nil)
	for _, name := range []string{"ann_one", "ann_two"} {
		_, err := f.call(t, f.caller, &tl.AccountUpdateUsername{Username: name})
		require.NoError(t, err)
	}

	got, err := f.call(t, f.caller, &tl.UpdatesGetDifference{Pts: 0})
	require.NoError(t, err)
	diff, ok := got.(*tl.UpdatesDifference)
	require.True(t, ok, "got %T", got)
	require.Len(t, diff.OtherUpdates, 2)
	first := diff.OtherUpdates[0].(*tl.UpdateUserName)
	second := diff.OtherUpdates[1].(*tl.UpdateUserName)
	assert.Equal(t, "ann_one", tl.ActiveUsername(first.Usernames))
	assert.Equal(t, "ann_two", tl.ActiveUsername(second.Usernames))
	assert.Equal(t, int32(2), diff.State.Pts)

	got, err = f.call(t, f.caller, &tl.UpdatesGetDifference{Pts: 1})
	require.NoError(t, err)
	require.Len(t, got.(*tl.UpdatesDifference).OtherUpdates, 1)

	tests := []struct {
		name  string
		query *tl.UpdatesGetDifference
		want  tl.Object
		err   *tl.RPCError
	}{
		{"up to date", &tl.UpdatesGetDifference{Pts: 2}, &tl.UpdatesDifferenceEmpty{}, nil},
		{"ahead of server", &tl.UpdatesGetDifference{Pts: 5}, nil, ErrPersistentTimestamp()},
		{"over the total limit", &tl.UpdatesGetDifference{
			Flags:         1 << tl.GetDifferenceFlagPtsTotalLimit,
			PtsTotalLimit: 1,
		}, &tl.UpdatesDifferenceTooLong{Pts: 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.call(t, f.caller, tt.query)
			if tt.err != nil {
				assert.Equal(t, tt.err, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
			if long, ok := tt.want.(*tl.UpdatesDifferenceTooLong); ok {
				assert.Equal(t, long, got)
			}
		})
	}
}

func TestCoreJoinAndLeaveChannel(t *testing.T) {
	ctx := context.Background()
	f := newCoreFixture(t, nil)

	sessions := session.NewManager(tl.Layer)
	mine, theirs := &sink{}, &sink{}
	s1, _, _ := sessions.Attach(session.Key{AuthKeyID: 100, SessionID: 1}, "a", mine)
	s1.SetAuthorization(session.Authorization{UserID: 1})
	s2, _, _ := sessions.Attach(session.Key{AuthKeyID: 200, SessionID: 1}, "b", theirs)
	require.NoError(t, f.broker.Subscribe(ctx, s1, pubsub.User(1)))
	require.NoError(t, f.broker.Subscribe(ctx, s2, pubsub.User(2)))
	require.NoError(t, f.members.Refresh(ctx, s1))

	got, err := f.call(t, f.caller, &tl.ChannelsJoinChannel{Channel: &tl.InputChannel{ChannelID: 100}})
	require.NoError(t, err)
	upd := got.(*tl.Updates)
	require.Len(t, upd.Updates, 1)
	assert.Equal(t, &tl.UpdateChannel{ChannelID: 100}, upd.Updates[0])
	assert.Equal(t, 1, mine.changed)
	assert.Zero(t, theirs.changed)

	require.NoError(t, f.members.Refresh(ctx, s1))
	assert.Equal(t, 1, f.broker.Subscriptions(pubsub.Channel(100)), "cached list was dropped")

	_, err = f.call(t, f.caller, &tl.ChannelsLeaveChannel{Channel: &tl.InputChannel{ChannelID: 100}})
	require.NoError(t, err)
	assert.Equal(t, 2, mine.changed)
	require.NoError(t, f.members.Refresh(ctx, s1))
	assert.Zero(t, f.broker.Subscriptions(pubsub.Channel(100)))

	ids, err := f.db.Users().Channels(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, in := range []tl.Object{nil, &tl.InputUserSelf{}, &tl.InputChannel{ChannelID: 0}} {
		_, err := f.call(t, f.caller, &tl.ChannelsJoinChannel{Channel: in})
		assert.Equal(t, ErrChannelInvalid(), err)
	}
}
