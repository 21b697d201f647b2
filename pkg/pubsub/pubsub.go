// Package pubsub fans updates out to the sessions subscribed to a user, an
// auth key or a channel.
package pubsub

import (
	"context"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

// Topic is the kind of id a subscription is keyed by.
type Topic uint8

const (
	TopicUser Topic = iota + 1
	TopicAuthKey
	TopicChannel
)

func (t Topic) String() string {
	switch t {
	case TopicUser:
		return "user"
	case TopicAuthKey:
		return "auth_key"
	case TopicChannel:
		return "channel"
	}
	return fmt.Sprintf("topic(%d)", uint8(t))
}

// Target addresses the sessions subscribed under one topic id.
type Target struct {
	Topic Topic `json:"topic"`
	ID    int64 `json:"id"`
}

func User(id int64) Target    { return Target{Topic: TopicUser, ID: id} }
func AuthKey(id int64) Target { return Target{Topic: TopicAuthKey, ID: id} }
func Channel(id int64) Target { return Target{Topic: TopicChannel, ID: id} }

// Update is delivered to the union of sessions matching Targets, except
// sessions on ExceptAuthKeyID when it is non-zero.
type Update struct {
	Targets         []Target
	ExceptAuthKeyID int64
	Object          tl.Object
	// Counter names the sequence the update advanced (pts, qts or seq) and
	// Value is the counter after the increment.
	Counter string
	Value   int32
	// Membership marks a signal, without Object, that the channel set of
	// the targeted users changed.
	Membership bool
}

// Broker maintains subscription indices and delivers updates.
type Broker interface {
	Subscribe(ctx context.Context, s *session.Session, targets ...Target) error
	Unsubscribe(ctx context.Context, s *session.Session, targets ...Target) error
	// UnsubscribeAll drops every subscription of s. It is called on session
	// teardown.
	UnsubscribeAll(ctx context.Context, s *session.Session) error
	Publish(ctx context.Context, u *Update) error
	Close() error
}
