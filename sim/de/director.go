// Package de implements the discrete-event director. It keeps a queue of
// pending firings ordered by tag and depth, and at each step fires every
// actor that has an event at the smallest tag.
package de

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// HookPosBeforeFire is invoked before an actor is fired. The item is the
// actor and the detail is the batch of events being dispatched.
var HookPosBeforeFire = &hooking.HookPos{Name: "DE Before Fire"}

// HookPosAfterFire is invoked after an actor's postfire returns.
var HookPosAfterFire = &hooking.HookPos{Name: "DE After Fire"}

// HookPosDeadlineMissed is invoked when an event is dispatched after its
// deadline. The detail is the error reported by the deadline gate.
var HookPosDeadlineMissed = &hooking.HookPos{Name: "DE Deadline Missed"}

// State is the step the director is in.
type State int

// Director states.
const (
	Idle State = iota
	Selecting
	Transferring
	Firing
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Transferring:
		return "transferring"
	case Firing:
		return "firing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// DeadlineGate watches event deadlines at dispatch time. It never changes
// the dispatch order.
type DeadlineGate interface {
	// Admit is called when an event with a finite deadline is queued.
	Admit(e eventqueue.Event)

	// Check is called right before the event is dispatched at platform time
	// now. A non-nil missed reports a violation; drop asks the director to
	// discard the event instead of dispatching it.
	Check(e eventqueue.Event, now timing.Time) (drop bool, missed error)
}

// Director is the discrete-event director.
type Director struct {
	hooking.HookableBase

	name      string
	container *actor.Composite
	queue     *eventqueue.Queue
	logger    logrus.FieldLogger

	startTime     timing.Time
	stopTime      timing.Time
	maxMicrosteps int
	clock         timing.PlatformClock
	syncRealTime  bool
	gate          DeadlineGate

	state        State
	modelTime    timing.Time
	microstep    int
	firing       bool
	inIteration  bool
	initializing bool
	finished     map[actor.Actor]bool
	stop         atomic.Bool

	requestedOuter timing.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the name of the director.
func (d *Director) Name() string {
	return d.name
}

// SetContainer is called by the composite the director is given to.
func (d *Director) SetContainer(c *actor.Composite) {
	d.container = c
}

// Container returns the composite the director runs.
func (d *Director) Container() *actor.Composite {
	return d.container
}

// Queue exposes the event queue for inspection.
func (d *Director) Queue() *eventqueue.Queue {
	return d.queue
}

// State returns the current step.
func (d *Director) State() State {
	return d.state
}

// ModelTime returns the current model time.
func (d *Director) ModelTime() timing.Time {
	return d.modelTime
}

// Microstep returns the current microstep.
func (d *Director) Microstep() int {
	return d.microstep
}

// Tag returns the current time and microstep.
func (d *Director) Tag() timing.Tag {
	return timing.Tag{Time: d.modelTime, Microstep: d.microstep}
}

// NextEventTime returns the time of the earliest pending event.
func (d *Director) NextEventTime() timing.Time {
	return d.queue.PeekTime()
}

func (d *Director) model() *actor.Model {
	return d.container.Model()
}

func (d *Director) resolution() timing.Resolution {
	if m := d.model(); m != nil {
		return m.Resolution()
	}

	return timing.DefaultResolution
}

func (d *Director) executive() actor.Director {
	return d.container.ExecutiveDirector()
}

func (d *Director) isEmbedded() bool {
	return d.executive() != nil
}

func (d *Director) fullName(a actor.Actor) string {
	if m := d.model(); m != nil {
		return m.FullName(a)
	}

	return a.Name()
}

func (d *Director) depth(a actor.Actor) int {
	if m := d.model(); m != nil {
		return m.Depth(a)
	}

	return 0
}

// FireAt schedules a firing of a no earlier than t.
func (d *Director) FireAt(a actor.Actor, t timing.Time) (timing.Time, error) {
	tag, err := d.Schedule(actor.FireRequest{Actor: a, Time: t})

	return tag.Time, err
}

// FireAtMicrostep schedules a firing of a at time t and at least microstep m.
func (d *Director) FireAtMicrostep(
	a actor.Actor,
	t timing.Time,
	m int,
) (timing.Tag, error) {
	return d.Schedule(actor.FireRequest{Actor: a, Time: t, Microstep: m})
}

// Schedule inserts a firing request. Times are rounded up to the model
// resolution. A request for a later time keeps its microstep. A request for
// the current time lands one microstep later, so it runs after the current
// work, except during initialization.
func (d *Director) Schedule(req actor.FireRequest) (timing.Tag, error) {
	t := d.resolution().QuantizeUp(req.Time)

	if t.IsPositiveInfinity() {
		return timing.Tag{Time: t}, nil
	}

	if t.Before(d.modelTime) {
		return timing.Tag{}, actor.NewConfigurationError(
			d.fullName(req.Actor),
			"requested firing at %s, which is before the current time %s",
			t, d.modelTime)
	}

	tag := timing.Tag{Time: t, Microstep: max(req.Microstep, 0)}

	if t.Equal(d.modelTime) {
		tag.Microstep = d.microstep
		if !d.initializing {
			tag.Microstep++
		}

		if req.Microstep > tag.Microstep {
			tag.Microstep = req.Microstep
		}
	}

	if d.finished[req.Actor] {
		return tag, nil
	}

	deadline := timing.Infinity
	if req.HasDeadline {
		deadline = req.Deadline
	}

	depth := req.Depth
	if depth <= 0 {
		depth = d.depth(req.Actor)
	}

	err := d.enqueue(eventqueue.Event{
		Actor:    req.Actor,
		Tag:      tag,
		Depth:    depth,
		Deadline: deadline,
	})

	return tag, err
}

func (d *Director) enqueue(e eventqueue.Event) error {
	e = d.queue.Put(e)

	if d.gate != nil && !e.Deadline.IsInfinite() {
		d.gate.Admit(e)
	}

	return d.requestOuterFiring(e.Tag.Time)
}

// requestOuterFiring makes sure the container is fired at t. Only the
// earliest pending inner time is requested; times that the current outer
// firing already covers stay local.
func (d *Director) requestOuterFiring(t timing.Time) error {
	outer := d.executive()
	if outer == nil || t.IsPositiveInfinity() {
		return nil
	}

	if d.inIteration && !t.After(outer.ModelTime()) {
		return nil
	}

	if !t.Before(d.requestedOuter) {
		return nil
	}

	got, err := outer.FireAt(d.container, t)
	if err != nil {
		return err
	}

	d.requestedOuter = got

	return nil
}

// Cancel removes every pending event of a.
func (d *Director) Cancel(a actor.Actor) {
	n := d.queue.Cancel(a)

	if n > 0 {
		d.logger.WithFields(logrus.Fields{
			"actor":  d.fullName(a),
			"events": n,
		}).Debug("cancelled pending events")
	}
}

// NewReceiver creates a FIFO unless the port asks for a mailbox.
func (d *Director) NewReceiver(p *actor.Port) receiver.Receiver {
	switch p.Hint() {
	case actor.HintMailbox:
		return receiver.NewMailbox()
	case actor.HintTaggedMailbox:
		return receiver.NewTaggedMailbox(d.Tag)
	default:
		return receiver.MakeFIFOBuilder().WithCapacity(p.Capacity()).Build()
	}
}

// Deliver queues a token for the actor owning p at the current tag. Tokens
// bound for the container's own output ports go straight into the receiver.
func (d *Director) Deliver(
	r receiver.Receiver,
	p *actor.Port,
	tok token.Token,
) error {
	owner := p.Owner()

	if owner == actor.Actor(d.container) {
		return r.Put(tok)
	}

	if d.finished[owner] {
		return nil
	}

	if !r.HasRoom() {
		return receiver.ErrNoRoom
	}

	deadline := timing.Infinity
	if rel := p.RelativeDeadline(); !rel.IsInfinite() {
		deadline = d.modelTime.Add(rel)
	}

	return d.enqueue(eventqueue.Event{
		Actor:    owner,
		Tag:      d.Tag(),
		Depth:    d.depth(owner),
		Deadline: deadline,
		Receiver: r,
		Port:     p,
		Token:    tok,
	})
}

// TransferInputs moves tokens waiting at the container's input port to the
// actors connected inside.
func (d *Director) TransferInputs(p *actor.Port) (bool, error) {
	moved := false

	for _, r := range p.Receivers() {
		m, err := actor.Drain(r, p.Broadcast)
		moved = moved || m

		if err != nil {
			return moved, err
		}
	}

	return moved, nil
}

// TransferOutputs moves tokens produced inside to the outside of the
// container's output port.
func (d *Director) TransferOutputs(p *actor.Port) (bool, error) {
	return d.TransferInputs(p)
}

// Stop ends the run after the current firing returns.
func (d *Director) Stop() {
	d.stop.Store(true)

	if d.cancel != nil {
		d.cancel()
	}

	for _, child := range d.container.Children() {
		if c, ok := child.(*actor.Composite); ok {
			c.Stop()
		}
	}
}

// StopRequested reports whether Stop was called in this run.
func (d *Director) StopRequested() bool {
	return d.stop.Load()
}

func (d *Director) invokeHook(pos *hooking.HookPos, item, detail any) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    pos,
		Tag:    d.Tag(),
		Item:   item,
		Detail: detail,
	})
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}
