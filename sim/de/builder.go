package de

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/timing"
)

// DefaultMaxMicrosteps bounds the number of microsteps at one time instant.
const DefaultMaxMicrosteps = 100000

// Builder builds DE directors.
type Builder struct {
	logger        logrus.FieldLogger
	startTime     timing.Time
	stopTime      timing.Time
	maxMicrosteps int
	clock         timing.PlatformClock
	syncRealTime  bool
	gate          DeadlineGate
}

// MakeBuilder returns a builder with no stop time and a wall clock.
func MakeBuilder() Builder {
	return Builder{
		logger:        logrus.StandardLogger(),
		stopTime:      timing.Infinity,
		maxMicrosteps: DefaultMaxMicrosteps,
	}
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithStartTime sets the model time a top-level run starts at.
func (b Builder) WithStartTime(t timing.Time) Builder {
	b.startTime = t
	return b
}

// WithStopTime ends a top-level run once the next event is later than t.
func (b Builder) WithStopTime(t timing.Time) Builder {
	b.stopTime = t
	return b
}

// WithMaxMicrosteps bounds how many microsteps may happen at one time
// before the model is rejected as a zero-delay loop.
func (b Builder) WithMaxMicrosteps(n int) Builder {
	b.maxMicrosteps = n
	return b
}

// WithClock sets the platform clock used for deadlines and real-time
// synchronization.
func (b Builder) WithClock(c timing.PlatformClock) Builder {
	b.clock = c
	return b
}

// WithSynchronizeToRealTime makes the director wait for the platform clock
// to reach an event's time before dispatching it.
func (b Builder) WithSynchronizeToRealTime(sync bool) Builder {
	b.syncRealTime = sync
	return b
}

// WithDeadlineGate attaches a deadline gate.
func (b Builder) WithDeadlineGate(g DeadlineGate) Builder {
	b.gate = g
	return b
}

// Build creates the director.
func (b Builder) Build(name string) *Director {
	clock := b.clock
	if clock == nil {
		clock = timing.NewWallClock()
	}

	return &Director{
		name:           name,
		queue:          eventqueue.New(),
		logger:         b.logger.WithField("director", name),
		startTime:      b.startTime,
		stopTime:       b.stopTime,
		maxMicrosteps:  b.maxMicrosteps,
		clock:          clock,
		syncRealTime:   b.syncRealTime,
		gate:           b.gate,
		finished:       make(map[actor.Actor]bool),
		requestedOuter: timing.Infinity,
	}
}
