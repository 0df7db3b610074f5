package tracing

import (
	"sort"
	"sync"
)

// CountTracer counts firings per actor, deadline misses and mode
// transitions.
type CountTracer struct {
	lock        sync.Mutex
	firings     map[string]uint64
	misses      map[string]uint64
	transitions map[string]uint64
}

// NewCountTracer creates a tracer with all counts at zero.
func NewCountTracer() *CountTracer {
	return &CountTracer{
		firings:     make(map[string]uint64),
		misses:      make(map[string]uint64),
		transitions: make(map[string]uint64),
	}
}

// Fired counts a firing.
func (t *CountTracer) Fired(f Firing) {
	t.lock.Lock()
	t.firings[f.Actor]++
	t.lock.Unlock()
}

// DeadlineMissed counts a miss.
func (t *CountTracer) DeadlineMissed(m Miss) {
	t.lock.Lock()
	t.misses[m.Actor]++
	t.lock.Unlock()
}

// ModeChanged counts a transition of the model.
func (t *CountTracer) ModeChanged(c ModeChange) {
	t.lock.Lock()
	t.transitions[c.Model]++
	t.lock.Unlock()
}

// Firings returns the number of firings of an actor.
func (t *CountTracer) Firings(actor string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.firings[actor]
}

// TotalFirings returns the number of firings of all actors.
func (t *CountTracer) TotalFirings() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	var n uint64
	for _, c := range t.firings {
		n += c
	}

	return n
}

// Misses returns the number of deadline misses of an actor.
func (t *CountTracer) Misses(actor string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.misses[actor]
}

// TotalMisses returns the number of deadline misses.
func (t *CountTracer) TotalMisses() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	var n uint64
	for _, c := range t.misses {
		n += c
	}

	return n
}

// Transitions returns the number of transitions of a modal model.
func (t *CountTracer) Transitions(model string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.transitions[model]
}

// Actors returns the names of the actors that fired, sorted.
func (t *CountTracer) Actors() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, 0, len(t.firings))
	for name := range t.firings {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
