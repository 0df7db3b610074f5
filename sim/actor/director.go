package actor

import (
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// A FireRequest asks a director to fire an actor at a time.
type FireRequest struct {
	Actor Actor
	Time  timing.Time

	// Microstep is the least microstep the firing may happen at. For the
	// current time the director may pick a later one so that the firing
	// follows the work already under way.
	Microstep int

	// Deadline is the absolute platform time by which the firing must be
	// dispatched. It is only used when HasDeadline is set.
	Deadline    timing.Time
	HasDeadline bool

	// Depth, when positive, replaces the actor's depth in the ordering of
	// firings at the same tag.
	Depth int
}

// Director is what an actor sees of the director that executes it.
type Director interface {
	// ModelTime returns the current model time.
	ModelTime() timing.Time

	// Microstep returns the current microstep.
	Microstep() int

	// FireAt asks for a to be fired no earlier than t. It returns the time
	// actually scheduled, which is t rounded up to the model resolution.
	// Asking for a time in the past is a configuration error.
	FireAt(a Actor, t timing.Time) (timing.Time, error)

	// Schedule is the general form of FireAt.
	Schedule(req FireRequest) (timing.Tag, error)

	// Cancel drops every pending firing of a.
	Cancel(a Actor)

	// NewReceiver creates the receiver that sits behind one channel of p.
	NewReceiver(p *Port) receiver.Receiver

	// Deliver hands tok to the receiver r of port p.
	Deliver(r receiver.Receiver, p *Port, tok token.Token) error
}

// LocalDirector is a director that runs the inside of a composite actor.
type LocalDirector interface {
	Director

	SetContainer(c *Composite)
	Container() *Composite

	Initialize() error
	Prefire() (bool, error)
	Fire() error
	Postfire() (bool, error)
	Wrapup() error

	// NextEventTime returns the time of the earliest pending firing, or
	// timing.Infinity if there is none.
	NextEventTime() timing.Time

	// TransferInputs moves tokens that arrived at the container's input port
	// p to the actors inside. It reports whether anything was moved.
	TransferInputs(p *Port) (bool, error)

	// TransferOutputs moves tokens produced inside to the outside of the
	// container's output port p.
	TransferOutputs(p *Port) (bool, error)

	// Stop asks the director to end the run at the next opportunity.
	Stop()
}

// ExecutiveDirector returns the director that fires a, or nil if a is not
// part of a model or is the top level.
func ExecutiveDirector(m *Model, a Actor) Director {
	c := m.Container(a)
	if c == nil {
		return nil
	}

	return c.Director()
}
