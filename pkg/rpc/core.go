package rpc

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"github.com/ZentaChain/zentalk-gateway/pkg/storage"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/updates"
)

func ErrAuthKeyUnregistered() *tl.RPCError { return tl.NewRPCError(401, "AUTH_KEY_UNREGISTERED") }
func ErrMethodInvalid() *tl.RPCError       { return tl.NewRPCError(400, "INPUT_METHOD_INVALID") }
func ErrUsernameInvalid() *tl.RPCError     { return tl.NewRPCError(400, "USERNAME_INVALID") }
func ErrUsernameOccupied() *tl.RPCError    { return tl.NewRPCError(400, "USERNAME_OCCUPIED") }
func ErrUsernameNotModified() *tl.RPCError { return tl.NewRPCError(400, "USERNAME_NOT_MODIFIED") }
func ErrChannelInvalid() *tl.RPCError      { return tl.NewRPCError(400, "CHANNEL_INVALID") }
func ErrPersistentTimestamp() *tl.RPCError {
	return tl.NewRPCError(400, "PERSISTENT_TIMESTAMP_INVALID")
}

// maxDifference bounds the updates returned by one getDifference; a longer
// gap is answered with differenceTooLong.
const maxDifference = 1000

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,30}[a-zA-Z0-9]$`)

// UserDirectory resolves users, produces their rename effects and records
// channel membership.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*storage.UserRecord, error)
	SetUsername(userID int64, username string) updates.Effect
	JoinChannel(ctx context.Context, channelID, userID int64) error
	LeaveChannel(ctx context.Context, channelID, userID int64) error
}

// MembershipNotifier is told when a user's channel set changed so that the
// user's live sessions resubscribe.
type MembershipNotifier interface {
	Changed(ctx context.Context, userID int64) error
}

// CoreHandler answers the requests the gateway serves itself and passes
// everything else to next.
type CoreHandler struct {
	users     UserDirectory
	publisher *updates.Publisher
	members   MembershipNotifier
	next      Handler
}

// NewCoreHandler builds the handler. members may be nil when no session
// tracks channel membership.
func NewCoreHandler(users UserDirectory, publisher *updates.Publisher, members MembershipNotifier, next Handler) *CoreHandler {
	return &CoreHandler{users: users, publisher: publisher, members: members, next: next}
}

func (h *CoreHandler) Handle(ctx context.Context, call *Call) (tl.Object, error) {
	switch q := call.Query.(type) {
	case *tl.UpdatesGetState:
		if !call.Caller.Authorized() {
			return nil, ErrAuthKeyUnregistered()
		}
		st, err := h.publisher.Store().State(ctx, call.Caller.AuthID)
		if err != nil {
			return nil, err
		}
		return st.Object(), nil

	case *tl.UpdatesGetDifference:
		if !call.Caller.Authorized() {
			return nil, ErrAuthKeyUnregistered()
		}
		return h.getDifference(ctx, call.Caller, q)

	case *tl.ChannelsJoinChannel:
		if !call.Caller.Authorized() {
			return nil, ErrAuthKeyUnregistered()
		}
		return h.setMember(ctx, call.Caller, q.Channel, true)

	case *tl.ChannelsLeaveChannel:
		if !call.Caller.Authorized() {
			return nil, ErrAuthKeyUnregistered()
		}
		return h.setMember(ctx, call.Caller, q.Channel, false)

	case *tl.UsersGetUsers:
		if !call.Caller.Authorized() {
			return nil, ErrAuthKeyUnregistered()
		}
		return h.getUsers(ctx, call.Caller, q)

	case *tl.AccountUpdateUsername:
		if !call.Caller.Authorized() {
			return nil, ErrAuthKeyUnregistered()
		}
		return h.updateUsername(ctx, call.Caller, q.Username)
	}

	if h.next != nil {
		return h.next.Handle(ctx, call)
	}
	return nil, ErrMethodInvalid()
}

func (h *CoreHandler) user(ctx context.Context, caller Caller, id int64) (*tl.User, error) {
	rec, err := h.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u := rec.Object()
	if id == caller.UserID {
		u.Flags.Set(tl.UserFlagSelf)
	}
	return u, nil
}

func (h *CoreHandler) getUsers(ctx context.Context, caller Caller, q *tl.UsersGetUsers) (tl.Object, error) {
	out := &tl.Vector{Items: make([]tl.Object, 0, len(q.ID))}
	for _, in := range q.ID {
		var (
			id         int64
			accessHash int64
			self       bool
		)
		switch in := in.(type) {
		case *tl.InputUserSelf:
			id, self = caller.UserID, true
		case *tl.InputUser:
			id, accessHash = in.UserID, in.AccessHash
		default:
			continue
		}

		u, err := h.user(ctx, caller, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			out.Items = append(out.Items, &tl.UserEmpty{ID: id})
			continue
		case err != nil:
			return nil, err
		}
		if !self && id != caller.UserID && u.AccessHash != accessHash {
			out.Items = append(out.Items, &tl.UserEmpty{ID: id})
			continue
		}
		out.Items = append(out.Items, u)
	}
	return out, nil
}

func (h *CoreHandler) updateUsername(ctx context.Context, caller Caller, username string) (tl.Object, error) {
	username = strings.TrimPrefix(username, "@")
	if username != "" && !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid()
	}
	current, err := h.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if current.Username == username {
		return nil, ErrUsernameNotModified()
	}

	var names []*tl.Username
	if username != "" {
		var flags tl.Flags
		flags.Set(tl.UsernameFlagEditable)
		flags.Set(tl.UsernameFlagActive)
		names = []*tl.Username{{Flags: flags, Username: username}}
	}

	_, err = h.publisher.Publish(ctx, updates.Event{
		AuthID:  caller.AuthID,
		Counter: updates.CounterPts,
		Effect:  h.users.SetUsername(caller.UserID, username),
		Build: func(st updates.State) tl.Object {
			return &tl.UpdateShort{
				Update: &tl.UpdateUserName{
					UserID:    caller.UserID,
					FirstName: current.FirstName,
					LastName:  current.LastName,
					Usernames: names,
				},
				Date: st.Date,
			}
		},
		Targets:         []pubsub.Target{pubsub.User(caller.UserID)},
		ExceptAuthKeyID: caller.AuthKeyID,
	})
	if errors.Is(err, storage.ErrUsernameOccupied) {
		return nil, ErrUsernameOccupied()
	}
	if err != nil {
		return nil, err
	}
	return h.user(ctx, caller, caller.UserID)
}

// getDifference replays the logged updates after the client's pts. Gaps
// the log no longer covers, or longer than the limit, yield
// differenceTooLong so that the client refetches its state.
func (h *CoreHandler) getDifference(ctx context.Context, caller Caller, q *tl.UpdatesGetDifference) (tl.Object, error) {
	store := h.publisher.Store()
	st, err := store.State(ctx, caller.AuthID)
	if err != nil {
		return nil, err
	}
	if q.Pts < 0 || q.Pts > st.Pts {
		return nil, ErrPersistentTimestamp()
	}
	if q.Pts == st.Pts {
		return &tl.UpdatesDifferenceEmpty{Date: st.Date, Seq: st.Seq}, nil
	}

	limit := maxDifference
	if q.Flags.Has(tl.GetDifferenceFlagPtsTotalLimit) && q.PtsTotalLimit > 0 {
		limit = min(limit, int(q.PtsTotalLimit))
	}
	if int(st.Pts-q.Pts) > limit {
		return &tl.UpdatesDifferenceTooLong{Pts: st.Pts}, nil
	}
	entries, err := store.Since(ctx, caller.AuthID, q.Pts)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[0].Pts != q.Pts+1 {
		return &tl.UpdatesDifferenceTooLong{Pts: st.Pts}, nil
	}

	other := make([]tl.Object, 0, len(entries))
	for _, e := range entries {
		if short, ok := e.Object.(*tl.UpdateShort); ok {
			other = append(other, short.Update)
			continue
		}
		other = append(other, e.Object)
	}
	return &tl.UpdatesDifference{
		NewMessages:          []tl.Object{},
		NewEncryptedMessages: []tl.Object{},
		OtherUpdates:         other,
		Chats:                []tl.Object{},
		Users:                []tl.Object{},
		State:                st.Object(),
	}, nil
}

// setMember adds or removes the caller from a channel and makes the
// caller's sessions resubscribe.
func (h *CoreHandler) setMember(ctx context.Context, caller Caller, in tl.Object, join bool) (tl.Object, error) {
	ch, ok := in.(*tl.InputChannel)
	if !ok || ch.ChannelID <= 0 {
		return nil, ErrChannelInvalid()
	}
	var err error
	if join {
		err = h.users.JoinChannel(ctx, ch.ChannelID, caller.UserID)
	} else {
		err = h.users.LeaveChannel(ctx, ch.ChannelID, caller.UserID)
	}
	if err != nil {
		return nil, err
	}
	if h.members != nil {
		if err := h.members.Changed(ctx, caller.UserID); err != nil {
			return nil, err
		}
	}
	return &tl.Updates{
		Updates: []tl.Object{&tl.UpdateChannel{ChannelID: ch.ChannelID}},
		Users:   []tl.Object{},
		Chats:   []tl.Object{},
		Date:    int32(time.Now().Unix()),
	}, nil
}
