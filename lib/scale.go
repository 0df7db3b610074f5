package lib

import (
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/token"
)

// Scale multiplies each input token by a factor and sends the product on
// the same channel.
type Scale struct {
	*actor.Base

	Input  *actor.Port
	Output *actor.Port

	factor token.Token
}

// NewScale creates a scale.
func NewScale(name string, factor token.Token) *Scale {
	s := &Scale{Base: actor.NewBase(name), factor: factor}
	s.Input = s.AddInputPort("input")
	s.Output = s.AddOutputPort("output")

	return s
}

// Fire scales what is waiting. Inputs on channels without a matching
// output channel are still consumed.
func (s *Scale) Fire() error {
	for ch := 0; ch < s.Input.Width(); ch++ {
		for s.Input.HasToken(ch) {
			tok, err := s.Input.Get(ch)
			if err != nil {
				return err
			}

			out, err := multiply(tok, s.factor)
			if err != nil {
				return err
			}

			if ch >= s.Output.Width() {
				continue
			}

			if err := s.Output.Send(ch, out); err != nil {
				return err
			}
		}
	}

	return nil
}
