package de

import (
	"fmt"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

type firingLog struct {
	entries []string
	tags    []timing.Tag
}

func (l *firingLog) add(name string, tag timing.Tag) {
	l.entries = append(l.entries, name)
	l.tags = append(l.tags, tag)
}

// source fires at the given times and sends its value each time.
type source struct {
	*actor.Base
	out   *actor.Port
	times []timing.Time
	value int64
	log   *firingLog
	err   error
}

func newSource(name string, log *firingLog, value int64, times ...float64) *source {
	s := &source{Base: actor.NewBase(name), value: value, log: log}
	s.out = s.AddOutputPort("output")

	for _, t := range times {
		s.times = append(s.times, timing.FromSeconds(t))
	}

	return s
}

func (s *source) Initialize() error {
	for _, t := range s.times {
		if _, err := s.FireAt(t); err != nil {
			return err
		}
	}

	return nil
}

func (s *source) Fire() error {
	if s.err != nil {
		return s.err
	}

	s.log.add(s.Name(), s.Tag())

	return s.out.Broadcast(token.NewInt(s.value))
}

// sink reads every channel in order and remembers what it saw.
type sink struct {
	*actor.Base
	in       *actor.Port
	out      *actor.Port
	log      *firingLog
	received []int64
	wrapups  int
	stopAt   int
}

func newSink(name string, log *firingLog) *sink {
	s := &sink{Base: actor.NewBase(name), log: log}
	s.in = s.AddInputPort("input")
	s.out = s.AddOutputPort("output")

	return s
}

func (s *sink) Fire() error {
	s.log.add(s.Name(), s.Tag())

	for ch := 0; ch < s.in.Width(); ch++ {
		for s.in.HasToken(ch) {
			tok, err := s.in.Get(ch)
			if err != nil {
				return err
			}

			v, _ := tok.Int()
			s.received = append(s.received, v)

			if err := s.out.Broadcast(tok); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *sink) Postfire() (bool, error) {
	if s.stopAt > 0 && len(s.received) >= s.stopAt {
		return false, nil
	}

	return true, nil
}

func (s *sink) Wrapup() error {
	s.wrapups++
	return nil
}

// echo requests a firing at the current time from inside its own firing.
type echo struct {
	*actor.Base
	repeat int
	tags   []timing.Tag
}

func (e *echo) Initialize() error {
	_, err := e.FireAt(timing.Zero)
	return err
}

func (e *echo) Fire() error {
	e.tags = append(e.tags, e.Tag())

	if len(e.tags) <= e.repeat {
		_, err := e.FireAt(e.ModelTime())
		return err
	}

	return nil
}

type fakeGate struct {
	admitted int
	misses   []timing.Time
	drop     bool
}

func (g *fakeGate) Admit(e eventqueue.Event) {
	g.admitted++
}

func (g *fakeGate) Check(e eventqueue.Event, now timing.Time) (bool, error) {
	if now.After(e.Deadline) {
		g.misses = append(g.misses, e.Time())
		return g.drop, fmt.Errorf("deadline %s missed at %s", e.Deadline, now)
	}

	return false, nil
}

func run(top *actor.Composite) error {
	if err := top.Initialize(); err != nil {
		return err
	}

	var runErr error

	for {
		ready, err := top.Prefire()
		if err != nil {
			runErr = err
			break
		}

		if ready {
			if err := top.Fire(); err != nil {
				runErr = err
				break
			}
		}

		cont, err := top.Postfire()
		if err != nil {
			runErr = err
			break
		}

		if !cont {
			break
		}
	}

	if err := top.Wrapup(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

// scripted runs the given functions as its life cycle.
type scripted struct {
	*actor.Base
	in   *actor.Port
	out  *actor.Port
	init func(s *scripted) error
	fire func(s *scripted) error
}

func newScripted(name string) *scripted {
	s := &scripted{Base: actor.NewBase(name)}
	s.in = s.AddInputPort("input")
	s.out = s.AddOutputPort("output")

	return s
}

func (s *scripted) Initialize() error {
	if s.init == nil {
		return nil
	}

	return s.init(s)
}

func (s *scripted) Fire() error {
	if s.fire == nil {
		return nil
	}

	return s.fire(s)
}
