// Package eventqueue holds the pending firings of one director, ordered by
// tag, depth and arrival.
package eventqueue

import (
	"fmt"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// An Event is a request to fire an actor at a tag. Events that deliver a
// token also name the receiver the token goes into; the director puts the
// token there right before the firing.
type Event struct {
	Actor actor.Actor
	Tag   timing.Tag
	Depth int

	// Seq is assigned by the queue and breaks the remaining ties.
	Seq uint64

	// Deadline is the absolute deadline of the event, or timing.Infinity.
	Deadline timing.Time

	Receiver receiver.Receiver
	Port     *actor.Port
	Token    token.Token
}

// Time returns the time of the event.
func (e Event) Time() timing.Time {
	return e.Tag.Time
}

// IsDelivery reports whether the event carries a token.
func (e Event) IsDelivery() bool {
	return e.Receiver != nil
}

// Less orders events by time, microstep, depth and then sequence number.
func (e Event) Less(o Event) bool {
	if c := e.Tag.Compare(o.Tag); c != 0 {
		return c < 0
	}

	if e.Depth != o.Depth {
		return e.Depth < o.Depth
	}

	return e.Seq < o.Seq
}

func (e Event) String() string {
	name := "<nil>"
	if e.Actor != nil {
		name = e.Actor.Name()
	}

	kind := "pure"
	if e.IsDelivery() {
		kind = "token " + e.Token.String()
	}

	return fmt.Sprintf("%s@%s depth %d #%d (%s)", name, e.Tag, e.Depth,
		e.Seq, kind)
}
