package lib

import (
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// Ramp emits Init at the start time and then, every period, the previous
// value plus Step.
type Ramp struct {
	*actor.Base

	Output *actor.Port

	init   token.Token
	step   token.Token
	period timing.Time
	limit  int

	state token.Token
	count int
}

// RampBuilder builds ramps.
type RampBuilder struct {
	init   token.Token
	step   token.Token
	period timing.Time
	limit  int
}

// MakeRampBuilder returns a builder for an integer ramp 0, 1, 2, ... with
// a period of one second and no limit.
func MakeRampBuilder() RampBuilder {
	return RampBuilder{
		init:   token.NewInt(0),
		step:   token.NewInt(1),
		period: timing.FromSeconds(1),
	}
}

// WithInit sets the first value.
func (b RampBuilder) WithInit(t token.Token) RampBuilder {
	b.init = t
	return b
}

// WithStep sets the increment.
func (b RampBuilder) WithStep(t token.Token) RampBuilder {
	b.step = t
	return b
}

// WithPeriod sets the model time between two outputs.
func (b RampBuilder) WithPeriod(d timing.Time) RampBuilder {
	b.period = d
	return b
}

// WithLimit makes the ramp finish after n outputs. Zero means never.
func (b RampBuilder) WithLimit(n int) RampBuilder {
	b.limit = n
	return b
}

// Build creates the ramp.
func (b RampBuilder) Build(name string) *Ramp {
	r := &Ramp{
		Base:   actor.NewBase(name),
		init:   b.init,
		step:   b.step,
		period: b.period,
		limit:  b.limit,
	}
	r.Output = r.AddOutputPort("output")

	return r
}

// Count returns the number of values emitted in this run.
func (r *Ramp) Count() int {
	return r.count
}

// Initialize resets the value and asks to fire at the start time.
func (r *Ramp) Initialize() error {
	if !r.period.After(timing.Zero) || r.period.IsInfinite() {
		return actor.NewConfigurationError(r.FullName(),
			"ramp period must be positive and finite, got %s", r.period)
	}

	r.state = r.init
	r.count = 0

	_, err := r.FireAt(r.ModelTime())

	return err
}

// Fire emits the current value.
func (r *Ramp) Fire() error {
	return r.Output.Broadcast(r.state)
}

// Postfire steps the value and schedules the next output.
func (r *Ramp) Postfire() (bool, error) {
	r.count++

	if r.limit > 0 && r.count >= r.limit {
		return false, nil
	}

	next, err := add(r.state, r.step)
	if err != nil {
		return false, err
	}

	r.state = next

	_, err = r.FireAfter(r.period)

	return err == nil, err
}
