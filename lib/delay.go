package lib

import (
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

type delayed struct {
	at  timing.Time
	tok token.Token
}

// TimedDelay sends each input token delay later. A zero delay sends it one
// microstep later. Its output does not depend on its input at the same tag,
// so it may close a loop.
type TimedDelay struct {
	*actor.Base

	Input  *actor.Port
	Output *actor.Port

	delay   timing.Time
	pending []delayed
}

// NewTimedDelay creates a delay.
func NewTimedDelay(name string, delay timing.Time) *TimedDelay {
	d := &TimedDelay{Base: actor.NewBase(name), delay: delay}
	d.Input = d.AddInputPort("input")
	d.Output = d.AddOutputPort("output")

	return d
}

// BreaksCausality reports true.
func (d *TimedDelay) BreaksCausality() bool {
	return true
}

// Pending returns the number of tokens in flight.
func (d *TimedDelay) Pending() int {
	return len(d.pending)
}

// Initialize drops tokens left from a previous run.
func (d *TimedDelay) Initialize() error {
	if d.delay.Before(timing.Zero) || d.delay.IsInfinite() {
		return actor.NewConfigurationError(d.FullName(),
			"delay must be finite and not negative, got %s", d.delay)
	}

	d.pending = nil

	return nil
}

// Fire sends the tokens that are due and takes in the new ones.
func (d *TimedDelay) Fire() error {
	now := d.ModelTime()

	due := 0
	for due < len(d.pending) && !d.pending[due].at.After(now) {
		due++
	}

	for _, p := range d.pending[:due] {
		if err := d.Output.Broadcast(p.tok); err != nil {
			return err
		}
	}

	d.pending = d.pending[due:]

	for ch := 0; ch < d.Input.Width(); ch++ {
		for d.Input.HasToken(ch) {
			tok, err := d.Input.Get(ch)
			if err != nil {
				return err
			}

			at, err := d.FireAt(now.Add(d.delay))
			if err != nil {
				return err
			}

			d.pending = append(d.pending, delayed{at: at, tok: tok})
		}
	}

	return nil
}
