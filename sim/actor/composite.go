package actor

import (
	"fmt"
	"log"

	"github.com/sarchlab/tempora/sim/timing"
)

type edge struct {
	src *Port
	dst *Port
}

// Composite is an actor that contains other actors and schedules them with
// its own director. To its container it looks like any other actor.
type Composite struct {
	*Base

	director LocalDirector
	children []Actor
	edges    []edge
}

// CompositeBuilder builds composites.
type CompositeBuilder struct {
	director LocalDirector
}

// MakeCompositeBuilder returns a builder. A director must be set before
// Build.
func MakeCompositeBuilder() CompositeBuilder {
	return CompositeBuilder{}
}

// WithDirector sets the director that runs the inside of the composite.
func (b CompositeBuilder) WithDirector(d LocalDirector) CompositeBuilder {
	b.director = d
	return b
}

// Build creates the composite.
func (b CompositeBuilder) Build(name string) *Composite {
	if b.director == nil {
		log.Panicf("composite %s needs a director", name)
	}

	c := &Composite{
		Base:     NewBase(name),
		director: b.director,
	}
	c.self = c
	b.director.SetContainer(c)

	return c
}

// Director returns the director that runs the inside of the composite.
func (c *Composite) Director() LocalDirector {
	return c.director
}

// Children returns the contained actors in the order they were added.
func (c *Composite) Children() []Actor {
	return c.children
}

// Child returns the contained actor with the given name, or nil.
func (c *Composite) Child(name string) Actor {
	for _, a := range c.children {
		if a.Name() == name {
			return a
		}
	}

	return nil
}

// AddActor puts a inside the composite.
func (c *Composite) AddActor(a Actor) {
	if c.Child(a.Name()) != nil {
		log.Panicf("composite %s already contains %s", c.name, a.Name())
	}

	c.children = append(c.children, a)

	if b, ok := a.(binder); ok {
		b.base().self = a
	}

	if c.model != nil {
		c.model.register(a, c.model.mustFind(c))
	}
}

// AddActors adds several actors in order.
func (c *Composite) AddActors(actors ...Actor) {
	for _, a := range actors {
		c.AddActor(a)
	}
}

func (c *Composite) isChild(a Actor) bool {
	for _, child := range c.children {
		if child == a {
			return true
		}
	}

	return false
}

// Connect links src to dst inside the composite. The source must be an
// output port of a child or an input port of the composite itself; the
// destination must be an input port of a child or an output port of the
// composite itself.
func (c *Composite) Connect(src, dst *Port) error {
	srcOwner := src.owner.self
	dstOwner := dst.owner.self

	switch {
	case src.IsOutput() && c.isChild(srcOwner):
	case src.IsInput() && src.owner == c.Base:
	default:
		return NewConfigurationError(c.FullName(),
			"cannot connect from %s", src.FullName())
	}

	switch {
	case dst.IsInput() && c.isChild(dstOwner):
	case dst.IsOutput() && dst.owner == c.Base:
	default:
		return NewConfigurationError(c.FullName(),
			"cannot connect to %s", dst.FullName())
	}

	recv := c.director.NewReceiver(dst)
	dst.addReceiver(recv)
	src.addLink(dst, recv, c.director)

	c.edges = append(c.edges, edge{src: src, dst: dst})

	return nil
}

// MustConnect is Connect that panics on error. It keeps model construction
// code short.
func (c *Composite) MustConnect(src, dst *Port) {
	if err := c.Connect(src, dst); err != nil {
		panic(err)
	}
}

// RemoveActor detaches a from the composite, cancels its pending firings and
// drops its connections.
func (c *Composite) RemoveActor(a Actor) error {
	if !c.isChild(a) {
		return NewConfigurationError(c.FullName(),
			"%s is not a child", a.Name())
	}

	c.director.Cancel(a)

	removed := a.(binder).base()
	kept := c.edges[:0]

	for _, e := range c.edges {
		switch {
		case e.dst.owner == removed:
			e.src.unlinkOwner(removed)
		case e.src.owner == removed:
			for _, l := range e.src.links {
				if l.dst == e.dst {
					e.dst.dropReceiver(l.recv)
				}
			}
		default:
			kept = append(kept, e)
		}
	}

	c.edges = kept

	for i, child := range c.children {
		if child == a {
			c.children = append(c.children[:i], c.children[i+1:]...)
			break
		}
	}

	if c.model != nil {
		c.model.remove(a)
	}

	return nil
}

// PeekTime returns when the composite next needs to be fired, or
// timing.Infinity if nothing is pending inside.
func (c *Composite) PeekTime() timing.Time {
	return c.director.NextEventTime()
}

// Initialize initializes the inside through the director.
func (c *Composite) Initialize() error {
	for _, p := range c.Ports() {
		p.ClearReceivers()
	}

	return c.director.Initialize()
}

// Prefire asks the director whether the composite is ready to fire.
func (c *Composite) Prefire() (bool, error) {
	return c.director.Prefire()
}

// Fire moves inputs inside, runs the director and moves outputs outside.
func (c *Composite) Fire() error {
	for _, p := range c.inputs {
		if _, err := c.director.TransferInputs(p); err != nil {
			return err
		}
	}

	if err := c.director.Fire(); err != nil {
		return err
	}

	for _, p := range c.outputs {
		if _, err := c.director.TransferOutputs(p); err != nil {
			return err
		}
	}

	return nil
}

// Postfire lets the director commit the iteration.
func (c *Composite) Postfire() (bool, error) {
	return c.director.Postfire()
}

// Wrapup wraps up the inside.
func (c *Composite) Wrapup() error {
	return c.director.Wrapup()
}

// Stop asks the director to end the run.
func (c *Composite) Stop() {
	c.director.Stop()
}

func (c *Composite) String() string {
	return fmt.Sprintf("Composite(%s)", c.FullName())
}
