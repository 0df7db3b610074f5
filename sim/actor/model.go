package actor

import (
	"fmt"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/naming"
	"github.com/sarchlab/tempora/sim/timing"
)

const noContainer = -1

type node struct {
	actor     Actor
	container int
	depth     int
	removed   bool
}

// Model is the arena of every actor in one model. Containers own their
// children; the child to container link is an index into the arena and is
// only used for lookups.
type Model struct {
	nodes      []node
	index      map[Actor]int
	top        *Composite
	resolution timing.Resolution
	logger     logrus.FieldLogger
	changes    ChangeRequester
}

// ModelBuilder builds models.
type ModelBuilder struct {
	resolution timing.Resolution
	logger     logrus.FieldLogger
}

// MakeModelBuilder returns a builder with the default resolution and the
// standard logger.
func MakeModelBuilder() ModelBuilder {
	return ModelBuilder{
		resolution: timing.DefaultResolution,
		logger:     logrus.StandardLogger(),
	}
}

// WithResolution sets the time resolution of the model.
func (b ModelBuilder) WithResolution(r timing.Resolution) ModelBuilder {
	b.resolution = r
	return b
}

// WithLogger sets the logger directors of the model log to.
func (b ModelBuilder) WithLogger(l logrus.FieldLogger) ModelBuilder {
	b.logger = l
	return b
}

// Build creates a model whose top level is top.
func (b ModelBuilder) Build(top *Composite) *Model {
	m := &Model{
		index:      make(map[Actor]int),
		resolution: b.resolution,
		logger:     b.logger,
	}

	m.top = top
	m.register(top, noContainer)

	return m
}

func (m *Model) register(a Actor, container int) {
	if _, found := m.index[a]; found {
		log.Panicf("actor %s is already part of the model", a.Name())
	}

	m.index[a] = len(m.nodes)
	m.nodes = append(m.nodes, node{actor: a, container: container})

	if b, ok := a.(binder); ok {
		b.bind(m, a)
	}

	if c, ok := a.(*Composite); ok {
		idx := m.index[a]
		for _, child := range c.children {
			m.register(child, idx)
		}
	}
}

// TopLevel returns the top-level composite.
func (m *Model) TopLevel() *Composite {
	return m.top
}

// Resolution returns the time resolution of the model.
func (m *Model) Resolution() timing.Resolution {
	return m.resolution
}

// Logger returns the model's logger.
func (m *Model) Logger() logrus.FieldLogger {
	return m.logger
}

// Contains reports whether a is a live actor of the model.
func (m *Model) Contains(a Actor) bool {
	i, found := m.index[a]
	return found && !m.nodes[i].removed
}

func (m *Model) mustFind(a Actor) int {
	i, found := m.index[a]
	if !found {
		log.Panicf("actor %s is not part of the model", a.Name())
	}

	return i
}

// Container returns the composite that contains a, or nil for the top level.
func (m *Model) Container(a Actor) *Composite {
	i, found := m.index[a]
	if !found || m.nodes[i].container == noContainer {
		return nil
	}

	return m.nodes[m.nodes[i].container].actor.(*Composite)
}

// FullName returns the dotted name of a from the top level.
func (m *Model) FullName(a Actor) string {
	i, found := m.index[a]
	if !found {
		return a.Name()
	}

	name := a.Name()
	for c := m.nodes[i].container; c != noContainer; c = m.nodes[c].container {
		name = naming.Join(m.nodes[c].actor.Name(), name)
	}

	return name
}

// Depth returns the topological rank of a among its siblings.
func (m *Model) Depth(a Actor) int {
	i, found := m.index[a]
	if !found {
		return 0
	}

	return m.nodes[i].depth
}

func (m *Model) setDepth(a Actor, depth int) {
	m.nodes[m.mustFind(a)].depth = depth
}

// Actors returns every live actor in registration order.
func (m *Model) Actors() []Actor {
	actors := make([]Actor, 0, len(m.nodes))

	for _, n := range m.nodes {
		if !n.removed {
			actors = append(actors, n.actor)
		}
	}

	return actors
}

// Find returns the live actor with the given full name.
func (m *Model) Find(fullName string) (Actor, bool) {
	for _, n := range m.nodes {
		if !n.removed && m.FullName(n.actor) == fullName {
			return n.actor, true
		}
	}

	return nil, false
}

func (m *Model) remove(a Actor) {
	i := m.mustFind(a)
	m.nodes[i].removed = true

	if c, ok := a.(*Composite); ok {
		for _, child := range c.children {
			m.remove(child)
		}
	}
}

// SetChangeRequester sets who receives change requests, normally the
// execution manager.
func (m *Model) SetChangeRequester(r ChangeRequester) {
	m.changes = r
}

// ChangeRequester returns who receives change requests, or nil.
func (m *Model) ChangeRequester() ChangeRequester {
	return m.changes
}

// RequestChange queues a change request with the model's requester.
func (m *Model) RequestChange(req ChangeRequest) {
	if m.changes == nil {
		panic(fmt.Sprintf(
			"change request %q queued on a model without a manager",
			req.Description))
	}

	m.changes.RequestChange(req)
}
