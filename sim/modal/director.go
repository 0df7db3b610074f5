// Package modal implements a mode-switching director. A modal model is a
// composite whose children are refinements, one per mode. Only the
// refinement of the current mode runs. Transitions between modes are chosen
// while the model fires but only take effect between two iterations of the
// whole model, through a change request.
package modal

import (
	"log"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// HookPosModeTransition is invoked after a transition commits. The item is
// the modal composite and the detail is the Transition.
var HookPosModeTransition = &hooking.HookPos{Name: "Modal Mode Transition"}

// HookPosTransitionDropped is invoked when a transition is chosen while
// another one is already waiting to commit.
var HookPosTransitionDropped = &hooking.HookPos{Name: "Modal Transition Dropped"}

// A Mode is a state of the modal model together with the actor that runs
// while the model is in it.
type Mode struct {
	Name       string
	Refinement actor.Actor
}

// Director runs the refinement of the current mode.
type Director struct {
	hooking.HookableBase

	name      string
	container *actor.Composite
	logger    logrus.FieldLogger

	modes       []*Mode
	transitions []Transition
	initial     string

	current  *Mode
	fired    bool
	chosen   *Transition
	queued   bool
	finished map[actor.Actor]bool
	pending  map[actor.Actor][]timing.Time
	inputs   map[string]token.Token
	outputs  map[string]token.Token
	stop     atomic.Bool
}

// Builder builds modal directors.
type Builder struct {
	logger logrus.FieldLogger
}

// MakeBuilder returns a builder.
func MakeBuilder() Builder {
	return Builder{logger: logrus.StandardLogger()}
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// Build creates the director.
func (b Builder) Build(name string) *Director {
	return &Director{
		name:     name,
		logger:   b.logger,
		finished: make(map[actor.Actor]bool),
		pending:  make(map[actor.Actor][]timing.Time),
		inputs:   make(map[string]token.Token),
		outputs:  make(map[string]token.Token),
	}
}

// Name returns the name of the director.
func (d *Director) Name() string {
	return d.name
}

// SetContainer is called by the composite the director is given to.
func (d *Director) SetContainer(c *actor.Composite) {
	d.container = c
}

// Container returns the modal composite.
func (d *Director) Container() *actor.Composite {
	return d.container
}

// AddMode declares a mode. The refinement becomes a child of the modal
// composite if it is not one already. The first mode added is the initial
// mode unless SetInitialMode says otherwise.
func (d *Director) AddMode(name string, refinement actor.Actor) *Mode {
	if d.container == nil {
		log.Panicf("modal director %s is not inside a composite", d.name)
	}

	if d.mode(name) != nil {
		log.Panicf("mode %s declared twice", name)
	}

	if d.container.Child(refinement.Name()) != refinement {
		d.container.AddActor(refinement)
	}

	m := &Mode{Name: name, Refinement: refinement}
	d.modes = append(d.modes, m)

	if d.initial == "" {
		d.initial = name
	}

	return m
}

// SetInitialMode sets the mode the model starts in.
func (d *Director) SetInitialMode(name string) {
	d.initial = name
}

// AddTransition declares a transition. Modes must be declared first.
func (d *Director) AddTransition(t Transition) error {
	if d.mode(t.From) == nil {
		return actor.NewConfigurationError(d.containerName(),
			"transition %s leaves unknown mode %s", t, t.From)
	}

	if d.mode(t.To) == nil {
		return actor.NewConfigurationError(d.containerName(),
			"transition %s enters unknown mode %s", t, t.To)
	}

	if t.Guard == nil {
		return actor.NewConfigurationError(d.containerName(),
			"transition %s has no guard", t)
	}

	d.transitions = append(d.transitions, t)

	return nil
}

// Modes returns the declared modes.
func (d *Director) Modes() []*Mode {
	return d.modes
}

// CurrentMode returns the name of the mode the model is in. A chosen
// transition does not change it until the transition commits.
func (d *Director) CurrentMode() string {
	if d.current == nil {
		return d.initial
	}

	return d.current.Name
}

// TransitionPending reports whether a chosen transition is waiting for the
// iteration boundary.
func (d *Director) TransitionPending() bool {
	return d.queued
}

func (d *Director) mode(name string) *Mode {
	for _, m := range d.modes {
		if m.Name == name {
			return m
		}
	}

	return nil
}

func (d *Director) modeOf(a actor.Actor) *Mode {
	for _, m := range d.modes {
		if m.Refinement == a {
			return m
		}
	}

	return nil
}

func (d *Director) isActive(a actor.Actor) bool {
	return d.current != nil && d.current.Refinement == a
}

func (d *Director) containerName() string {
	if d.container == nil {
		return d.name
	}

	return d.container.FullName()
}

func (d *Director) executive() actor.Director {
	return d.container.ExecutiveDirector()
}

// ModelTime returns the time of the director that fires the modal model.
func (d *Director) ModelTime() timing.Time {
	if outer := d.executive(); outer != nil {
		return outer.ModelTime()
	}

	return timing.Zero
}

// Microstep returns the microstep of the director that fires the modal
// model.
func (d *Director) Microstep() int {
	if outer := d.executive(); outer != nil {
		return outer.Microstep()
	}

	return 0
}

// Tag returns the current tag.
func (d *Director) Tag() timing.Tag {
	return timing.Tag{Time: d.ModelTime(), Microstep: d.Microstep()}
}

// FireAt forwards requests of the active refinement to the outside as a
// request to fire the modal model. Requests of inactive refinements are
// remembered and forwarded when their mode is entered.
func (d *Director) FireAt(a actor.Actor, t timing.Time) (timing.Time, error) {
	tag, err := d.Schedule(actor.FireRequest{Actor: a, Time: t})

	return tag.Time, err
}

// Schedule is the general form of FireAt.
func (d *Director) Schedule(req actor.FireRequest) (timing.Tag, error) {
	outer := d.executive()
	if outer == nil {
		return timing.Tag{}, actor.NewConfigurationError(d.containerName(),
			"a modal model must be inside another composite")
	}

	d.pending[req.Actor] = append(d.pending[req.Actor], req.Time)

	if !d.isActive(req.Actor) {
		return timing.Tag{Time: req.Time}, nil
	}

	req.Actor = d.container

	return outer.Schedule(req)
}

// Cancel forgets the pending requests of a. Cancelling the active
// refinement also cancels the outer firings of the modal model.
func (d *Director) Cancel(a actor.Actor) {
	delete(d.pending, a)

	if d.isActive(a) {
		if outer := d.executive(); outer != nil {
			outer.Cancel(d.container)
		}
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

// Deliver puts tokens straight into the receiver. Tokens bound for a
// refinement that is not active are dropped. Tokens leaving through the
// modal model's own output ports are remembered for the guards.
func (d *Director) Deliver(
	r receiver.Receiver,
	p *actor.Port,
	tok token.Token,
) error {
	owner := p.Owner()

	if owner == actor.Actor(d.container) {
		d.outputs[p.Name()] = tok
		return r.Put(tok)
	}

	if !d.isActive(owner) {
		d.logger.WithFields(logrus.Fields{
			"port": p.FullName(),
			"mode": d.CurrentMode(),
		}).Trace("dropped token for an inactive refinement")

		return nil
	}

	return r.Put(tok)
}

// TransferInputs moves tokens at the modal model's input port p to the
// active refinement and remembers the latest one for the guards.
func (d *Director) TransferInputs(p *actor.Port) (bool, error) {
	moved := false

	for _, r := range p.Receivers() {
		m, err := actor.Drain(r, func(tok token.Token) error {
			d.inputs[p.Name()] = tok
			return p.Broadcast(tok)
		})
		moved = moved || m

		if err != nil {
			return moved, err
		}
	}

	return moved, nil
}

// TransferOutputs moves tokens the refinement produced to the outside of the
// modal model's output port p.
func (d *Director) TransferOutputs(p *actor.Port) (bool, error) {
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

// NextEventTime returns the earliest time the current refinement asked to
// be fired at.
func (d *Director) NextEventTime() timing.Time {
	if d.current == nil {
		return timing.Infinity
	}

	return d.nextTimeOf(d.current.Refinement)
}

func (d *Director) nextTimeOf(a actor.Actor) timing.Time {
	next := timing.Infinity

	for _, t := range d.pending[a] {
		next = timing.Min(next, t)
	}

	if c, ok := a.(*actor.Composite); ok {
		next = timing.Min(next, c.PeekTime())
	}

	return next
}

// Stop asks the director to end the run.
func (d *Director) Stop() {
	d.stop.Store(true)

	for _, m := range d.modes {
		if c, ok := m.Refinement.(*actor.Composite); ok {
			c.Stop()
		}
	}
}

func (d *Director) invokeHook(pos *hooking.HookPos, detail any) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    pos,
		Tag:    d.Tag(),
		Item:   d.container,
		Detail: detail,
	})
}
