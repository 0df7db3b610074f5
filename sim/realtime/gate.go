// Package realtime adds deadlines to discrete-event execution. A Gate
// watches the deadline of every event at dispatch and reports the ones that
// are dispatched late. NetworkInput brings timestamped packets from an
// outside link into a model.
package realtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/timing"
)

// Policy says what happens to an event that misses its deadline.
type Policy int

// Deadline policies.
const (
	// ReportLate dispatches late events and only reports them.
	ReportLate Policy = iota

	// DropLate discards late events.
	DropLate
)

func (p Policy) String() string {
	switch p {
	case ReportLate:
		return "report"
	case DropLate:
		return "drop"
	default:
		return "unknown"
	}
}

// ParsePolicy reads a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "report":
		return ReportLate, nil
	case "drop":
		return DropLate, nil
	default:
		return ReportLate, actor.NewConfigurationError("realtime",
			"unknown deadline policy %q", s)
	}
}

// AbsoluteDeadline returns the time by which an event stamped timestamp must
// be dispatched. An infinite relative deadline means no deadline.
func AbsoluteDeadline(timestamp, relative timing.Time) timing.Time {
	if relative.IsInfinite() {
		return timing.Infinity
	}

	return timestamp.Add(relative)
}

// DeadlineMissed reports an event dispatched after its deadline.
type DeadlineMissed struct {
	Actor    string
	Tag      timing.Tag
	Deadline timing.Time

	// At is the platform time of the dispatch.
	At timing.Time
}

// Lateness is how far past the deadline the dispatch happened.
func (e *DeadlineMissed) Lateness() timing.Time {
	return e.At.Sub(e.Deadline)
}

func (e *DeadlineMissed) Error() string {
	return fmt.Sprintf("%s missed deadline %s of event %s by %s",
		e.Actor, e.Deadline, e.Tag, e.Lateness())
}

type fullNamer interface {
	FullName() string
}

// Gate checks deadlines at dispatch. It never changes the dispatch order;
// with the DropLate policy it asks the director to discard late events.
type Gate struct {
	lock     sync.Mutex
	policy   Policy
	logger   logrus.FieldLogger
	admitted int
	checked  int
	misses   []*DeadlineMissed
}

// GateBuilder builds gates.
type GateBuilder struct {
	policy Policy
	logger logrus.FieldLogger
}

// MakeGateBuilder returns a builder for a reporting gate.
func MakeGateBuilder() GateBuilder {
	return GateBuilder{
		policy: ReportLate,
		logger: logrus.StandardLogger(),
	}
}

// WithPolicy sets what happens to late events.
func (b GateBuilder) WithPolicy(p Policy) GateBuilder {
	b.policy = p
	return b
}

// WithLogger sets the logger.
func (b GateBuilder) WithLogger(l logrus.FieldLogger) GateBuilder {
	b.logger = l
	return b
}

// Build creates the gate.
func (b GateBuilder) Build() *Gate {
	return &Gate{policy: b.policy, logger: b.logger}
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Admit records that an event with a deadline was queued.
func (g *Gate) Admit(e eventqueue.Event) {
	g.lock.Lock()
	g.admitted++
	g.lock.Unlock()

	g.logger.WithFields(logrus.Fields{
		"actor":    actorName(e.Actor),
		"time":     e.Tag.Time,
		"deadline": e.Deadline,
	}).Trace("deadline admitted")
}

// Check compares the event's deadline with the platform time now.
func (g *Gate) Check(e eventqueue.Event, now timing.Time) (bool, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.checked++

	if !now.After(e.Deadline) {
		return false, nil
	}

	miss := &DeadlineMissed{
		Actor:    actorName(e.Actor),
		Tag:      e.Tag,
		Deadline: e.Deadline,
		At:       now,
	}
	g.misses = append(g.misses, miss)

	return g.policy == DropLate, miss
}

// Misses returns every deadline miss seen so far.
func (g *Gate) Misses() []*DeadlineMissed {
	g.lock.Lock()
	defer g.lock.Unlock()

	return append([]*DeadlineMissed(nil), g.misses...)
}

// Admitted returns how many events with a deadline were queued.
func (g *Gate) Admitted() int {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.admitted
}

// Checked returns how many events with a deadline were dispatched or
// dropped.
func (g *Gate) Checked() int {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.checked
}

// Reset forgets all counts and misses.
func (g *Gate) Reset() {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.admitted = 0
	g.checked = 0
	g.misses = nil
}

func actorName(a actor.Actor) string {
	if a == nil {
		return ""
	}

	if n, ok := a.(fullNamer); ok {
		return n.FullName()
	}

	return a.Name()
}
