package lib

import (
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
)

// PeriodicSampler copies the latest input of each channel to the output of
// the same channel every sample period. Inputs are held in mailboxes, so a
// channel keeps being sampled at its last value until a new one arrives.
type PeriodicSampler struct {
	*actor.Base

	Input  *actor.Port
	Output *actor.Port

	period timing.Time
	next   timing.Time

	samples int
}

// NewPeriodicSampler creates a sampler with the given period.
func NewPeriodicSampler(name string, period timing.Time) *PeriodicSampler {
	s := &PeriodicSampler{
		Base:   actor.NewBase(name),
		period: period,
	}
	s.Input = s.AddInputPort("input").UseMailbox()
	s.Output = s.AddOutputPort("output")

	return s
}

// Samples returns how many sampling instants the sampler went through.
func (s *PeriodicSampler) Samples() int {
	return s.samples
}

// NextSamplingTime returns when the next sample is taken.
func (s *PeriodicSampler) NextSamplingTime() timing.Time {
	return s.next
}

// Initialize takes the first sample at the start time.
func (s *PeriodicSampler) Initialize() error {
	if !s.period.After(timing.Zero) || s.period.IsInfinite() {
		return actor.NewConfigurationError(s.FullName(),
			"sample period must be positive and finite, got %s", s.period)
	}

	s.samples = 0
	s.next = s.ModelTime()

	_, err := s.FireAt(s.next)

	return err
}

func (s *PeriodicSampler) due() bool {
	return s.ModelTime().Equal(s.next)
}

// Fire samples min(input width, output width) channels if the model time
// is a sampling time. Channels that never received a token are skipped.
func (s *PeriodicSampler) Fire() error {
	if !s.due() {
		return nil
	}

	width := min(s.Input.Width(), s.Output.Width())

	for ch := 0; ch < width; ch++ {
		if !s.Input.HasToken(ch) {
			continue
		}

		tok, err := s.Input.Get(ch)
		if err != nil {
			return err
		}

		if err := s.Output.Send(ch, tok); err != nil {
			return err
		}
	}

	return nil
}

// Postfire moves to the next sampling time after a sample.
func (s *PeriodicSampler) Postfire() (bool, error) {
	if !s.due() {
		return true, nil
	}

	s.samples++
	s.next = s.next.Add(s.period)

	_, err := s.FireAt(s.next)

	return err == nil, err
}
