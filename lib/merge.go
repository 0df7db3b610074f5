package lib

import "github.com/sarchlab/tempora/sim/actor"

// Merge forwards every token from every input channel, channel 0 first.
type Merge struct {
	*actor.Base

	Input  *actor.Port
	Output *actor.Port
}

// NewMerge creates a merge.
func NewMerge(name string) *Merge {
	m := &Merge{Base: actor.NewBase(name)}
	m.Input = m.AddInputPort("input")
	m.Output = m.AddOutputPort("output")

	return m
}

// Fire forwards what is waiting.
func (m *Merge) Fire() error {
	for ch := 0; ch < m.Input.Width(); ch++ {
		for m.Input.HasToken(ch) {
			tok, err := m.Input.Get(ch)
			if err != nil {
				return err
			}

			if err := m.Output.Broadcast(tok); err != nil {
				return err
			}
		}
	}

	return nil
}
