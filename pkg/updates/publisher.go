package updates

import (
	"context"

	"github.com/ZentaChain/zentalk-gateway/pkg/pubsub"
	"go.uber.org/zap"
)

// Event is a state change that other sessions must observe.
type Event struct {
	AuthID          int64
	Counter         Counter
	Effect          Effect
	Build           Builder
	Targets         []pubsub.Target
	ExceptAuthKeyID int64
}

// Publisher commits events to a Store and fans the resulting update out
// through a Broker once the commit succeeded.
type Publisher struct {
	store  Store
	broker pubsub.Broker
	log    *zap.Logger
}

func NewPublisher(store Store, broker pubsub.Broker, log *zap.Logger) *Publisher {
	return &Publisher{store: store, broker: broker, log: log.Named("updates")}
}

func (p *Publisher) Store() Store { return p.store }

// Publish applies ev and returns the new state. A broker failure after the
// commit is logged, not returned: the update stays in the log for replay.
func (p *Publisher) Publish(ctx context.Context, ev Event) (State, error) {
	st, obj, err := p.store.Apply(ctx, ev.AuthID, ev.Counter, ev.Effect, ev.Build)
	if err != nil {
		return State{}, err
	}
	if obj == nil || len(ev.Targets) == 0 {
		return st, nil
	}
	err = p.broker.Publish(ctx, &pubsub.Update{
		Targets:         ev.Targets,
		ExceptAuthKeyID: ev.ExceptAuthKeyID,
		Object:          obj,
		Counter:         ev.Counter.String(),
		Value:           st.Get(ev.Counter),
	})
	if err != nil {
		p.log.Error("publish update",
			zap.Int64("auth_id", ev.AuthID),
			zap.Stringer("counter", ev.Counter),
			zap.Int32("value", st.Get(ev.Counter)),
			zap.Error(err))
	}
	return st, nil
}
