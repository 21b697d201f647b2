package mtproto

import (
	"sync"
	"time"
)

// MsgIDGenerator issues strictly increasing server message ids. Ids of
// responses end in binary 01, other server messages in 11.
type MsgIDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMsgIDGenerator() *MsgIDGenerator {
	return &MsgIDGenerator{now: time.Now}
}

// Next returns a new id. response marks replies to client requests.
func (g *MsgIDGenerator) Next(response bool) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := MsgIDAt(g.now()) &^ 3
	if base := g.last &^ 3; id <= base {
		id = base + 4
	}
	if response {
		id |= 1
	} else {
		id |= 3
	}
	g.last = id
	return id
}

// MsgIDAt returns the message id whose time part is t, with the low two
// bits clear.
func MsgIDAt(t time.Time) int64 {
	sec := t.Unix()
	frac := int64(t.Nanosecond()) << 32 / int64(time.Second)
	return (sec<<32 | frac) &^ 3
}

// MsgIDTime returns the wall-clock time encoded in a message id.
func MsgIDTime(msgID int64) time.Time {
	return time.Unix(msgID>>32, 0)
}
