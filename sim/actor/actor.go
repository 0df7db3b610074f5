// Package actor defines the actor life-cycle contract, ports, composite
// actors and the model arena that records containment.
package actor

import (
	"fmt"

	"github.com/sarchlab/tempora/sim/naming"
	"github.com/sarchlab/tempora/sim/timing"
)

// An Actor is a schedulable unit of computation with typed ports.
//
// A director calls Initialize once per run, then repeatedly Prefire, Fire
// and Postfire, and finally Wrapup once. Fire may send tokens and request
// future firings. A false return from Postfire means the actor is done and
// will not be fired again in this run.
type Actor interface {
	naming.Named

	Initialize() error
	Prefire() (bool, error)
	Fire() error
	Postfire() (bool, error)
	Wrapup() error

	// Ports returns the input ports followed by the output ports.
	Ports() []*Port
}

// CausalityBreaker is implemented by actors whose outputs never depend on
// inputs at the same tag, such as delays. Their outgoing connections do not
// count when depths are computed.
type CausalityBreaker interface {
	BreaksCausality() bool
}

type binder interface {
	bind(m *Model, self Actor)
	base() *Base
}

// Base carries what every actor needs: a name, ports and a way to reach the
// director that executes it. Actors embed *Base and override the life-cycle
// methods they care about.
type Base struct {
	name    string
	model   *Model
	self    Actor
	inputs  []*Port
	outputs []*Port
}

// NewBase creates a Base. The name must be a valid local name.
func NewBase(name string) *Base {
	naming.MustBeValid(name)

	return &Base{name: name}
}

func (b *Base) bind(m *Model, self Actor) {
	b.model = m
	b.self = self
}

func (b *Base) base() *Base {
	return b
}

// Name returns the local name.
func (b *Base) Name() string {
	return b.name
}

// FullName returns the dotted name from the top level.
func (b *Base) FullName() string {
	if b.model == nil {
		return b.name
	}

	return b.model.FullName(b.self)
}

// Model returns the model the actor belongs to, or nil before it is added.
func (b *Base) Model() *Model {
	return b.model
}

// Self returns the actor that embeds this Base.
func (b *Base) Self() Actor {
	return b.self
}

// ExecutiveDirector returns the director that fires this actor.
func (b *Base) ExecutiveDirector() Director {
	if b.model == nil {
		return nil
	}

	return ExecutiveDirector(b.model, b.self)
}

func (b *Base) mustHaveDirector() Director {
	d := b.ExecutiveDirector()
	if d == nil {
		panic(fmt.Sprintf("actor %s is not inside a composite", b.name))
	}

	return d
}

// ModelTime returns the current time of the executive director.
func (b *Base) ModelTime() timing.Time {
	return b.mustHaveDirector().ModelTime()
}

// Tag returns the current tag of the executive director.
func (b *Base) Tag() timing.Tag {
	d := b.mustHaveDirector()
	return timing.Tag{Time: d.ModelTime(), Microstep: d.Microstep()}
}

// FireAt asks the executive director to fire this actor at t.
func (b *Base) FireAt(t timing.Time) (timing.Time, error) {
	return b.mustHaveDirector().FireAt(b.self, t)
}

// FireAfter asks to be fired d after the current model time.
func (b *Base) FireAfter(d timing.Time) (timing.Time, error) {
	dir := b.mustHaveDirector()
	return dir.FireAt(b.self, dir.ModelTime().Add(d))
}

// AddInputPort creates an input port.
func (b *Base) AddInputPort(name string) *Port {
	p := b.newPort(name, Input)
	b.inputs = append(b.inputs, p)

	return p
}

// AddOutputPort creates an output port.
func (b *Base) AddOutputPort(name string) *Port {
	p := b.newPort(name, Output)
	b.outputs = append(b.outputs, p)

	return p
}

func (b *Base) newPort(name string, dir Direction) *Port {
	naming.MustBeValid(name)

	if b.Port(name) != nil {
		panic(fmt.Sprintf("actor %s already has a port named %s", b.name, name))
	}

	return &Port{
		name:             name,
		owner:            b,
		direction:        dir,
		relativeDeadline: timing.Infinity,
	}
}

// Port returns the port with the given name, or nil.
func (b *Base) Port(name string) *Port {
	for _, p := range b.Ports() {
		if p.name == name {
			return p
		}
	}

	return nil
}

// Inputs returns the input ports in creation order.
func (b *Base) Inputs() []*Port {
	return b.inputs
}

// Outputs returns the output ports in creation order.
func (b *Base) Outputs() []*Port {
	return b.outputs
}

// Ports returns the input ports followed by the output ports.
func (b *Base) Ports() []*Port {
	ports := make([]*Port, 0, len(b.inputs)+len(b.outputs))
	ports = append(ports, b.inputs...)

	return append(ports, b.outputs...)
}

// Initialize does nothing.
func (b *Base) Initialize() error {
	return nil
}

// Prefire returns true.
func (b *Base) Prefire() (bool, error) {
	return true, nil
}

// Fire does nothing.
func (b *Base) Fire() error {
	return nil
}

// Postfire returns true.
func (b *Base) Postfire() (bool, error) {
	return true, nil
}

// Wrapup does nothing.
func (b *Base) Wrapup() error {
	return nil
}
