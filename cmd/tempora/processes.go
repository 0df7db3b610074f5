package main

import (
	"sync"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/token"
)

// square waits for one integer per firing and sends its square.
type square struct {
	*actor.Base
	input  *actor.Port
	output *actor.Port
}

func newSquare(name string) *square {
	s := &square{Base: actor.NewBase(name)}
	s.input = s.AddInputPort("input")
	s.output = s.AddOutputPort("output")

	return s
}

func (s *square) Fire() error {
	tok, err := s.input.Get(0)
	if err != nil {
		return err
	}

	v, err := tok.Int()
	if err != nil {
		return err
	}

	return s.output.Broadcast(token.NewInt(v * v))
}

// collector keeps every token it waits for.
type collector struct {
	*actor.Base
	input *actor.Port

	lock   sync.Mutex
	tokens []token.Token
}

func newCollector(name string) *collector {
	c := &collector{Base: actor.NewBase(name)}
	c.input = c.AddInputPort("input")

	return c
}

func (c *collector) Initialize() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.tokens = nil

	return nil
}

func (c *collector) Fire() error {
	tok, err := c.input.Get(0)
	if err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.tokens = append(c.tokens, tok)

	return nil
}

// Tokens returns a copy of what was collected.
func (c *collector) Tokens() []token.Token {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]token.Token(nil), c.tokens...)
}
