// Package tracing turns director and manager hooks into trace records.
// Tracers receive firings, deadline misses and mode transitions and decide
// what to keep.
package tracing

import (
	"github.com/sarchlab/tempora/sim/timing"
)

// A Firing is one firing of an actor.
type Firing struct {
	Director string
	Actor    string
	Tag      timing.Tag

	// Events is the number of events consumed by the firing. It is zero in
	// the process-oriented domain.
	Events int
}

// A Miss is an event dispatched after its deadline.
type Miss struct {
	Actor    string
	Tag      timing.Tag
	Deadline timing.Time
	Lateness timing.Time
}

// A ModeChange is a committed mode transition.
type ModeChange struct {
	Model      string
	Transition string
	From       string
	To         string
	Reset      bool
	Tag        timing.Tag
}

// A Tracer collects trace records. Tracers attached to process-oriented
// directors are called from many goroutines.
type Tracer interface {
	Fired(f Firing)
	DeadlineMissed(miss Miss)
	ModeChanged(c ModeChange)
}
