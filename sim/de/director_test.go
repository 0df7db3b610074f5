package de

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/timing"
)

func newTop(b Builder) (*actor.Composite, *Director) {
	d := b.Build("DE")
	top := actor.MakeCompositeBuilder().WithDirector(d).Build("Top")
	actor.MakeModelBuilder().
		WithResolution(timing.MustResolution(1e-9)).
		Build(top)

	return top, d
}

func secs(tags []timing.Tag) []float64 {
	out := make([]float64, len(tags))
	for i, t := range tags {
		out[i] = t.Time.Seconds()
	}

	return out
}

var _ = Describe("Director", func() {
	var (
		top *actor.Composite
		dir *Director
		log *firingLog
	)

	BeforeEach(func() {
		top, dir = newTop(MakeBuilder())
		log = &firingLog{}
	})

	It("should fire upstream actors first at the same time", func() {
		var got []int64

		b := newScripted("B")
		b.init = func(s *scripted) error {
			_, err := s.FireAt(timing.Zero)
			return err
		}
		b.fire = func(s *scripted) error {
			log.add(s.Name(), s.Tag())

			for s.in.HasToken(0) {
				tok, err := s.in.Get(0)
				if err != nil {
					return err
				}

				v, _ := tok.Int()
				got = append(got, v)
			}

			return nil
		}

		a := newSource("A", log, 1, 0)
		top.AddActors(b, a)
		top.MustConnect(a.out, b.in)

		Expect(run(top)).To(Succeed())
		Expect(log.entries).To(Equal([]string{"A", "B"}))
		Expect(got).To(Equal([]int64{1}))
	})

	It("should fire earlier requests first regardless of request order", func() {
		a := newSource("A", log, 1, 2, 1)
		top.AddActor(a)

		Expect(run(top)).To(Succeed())
		Expect(secs(log.tags)).To(Equal([]float64{1, 2}))
	})

	It("should merge simultaneous tokens in channel order", func() {
		for _, order := range [][]string{{"A", "B"}, {"B", "A"}} {
			top, _ = newTop(MakeBuilder())
			log = &firingLog{}
			a := newSource("A", log, 1, 0)
			b := newSource("B", log, 2, 0)
			m := newSink("M", log)

			if order[0] == "A" {
				top.AddActors(a, b, m)
			} else {
				top.AddActors(b, a, m)
			}

			top.MustConnect(a.out, m.in)
			top.MustConnect(b.out, m.in)

			Expect(run(top)).To(Succeed())
			Expect(m.received).To(Equal([]int64{1, 2}))
			Expect(log.entries[2]).To(Equal("M"))
			Expect(log.entries).To(HaveLen(3))
		}
	})

	It("should reject firing requests in the past", func() {
		s := newScripted("S")
		s.init = func(s *scripted) error {
			_, err := s.FireAt(timing.FromSeconds(2))
			return err
		}
		s.fire = func(s *scripted) error {
			_, err := s.FireAt(timing.FromSeconds(1))
			return err
		}
		top.AddActor(s)

		err := run(top)
		Expect(errors.Is(err, actor.ErrConfiguration)).To(BeTrue())
	})

	It("should put requests for the current time in a later microstep", func() {
		e := &echo{Base: actor.NewBase("E"), repeat: 2}
		top.AddActor(e)

		Expect(run(top)).To(Succeed())
		Expect(e.tags).To(Equal([]timing.Tag{
			{Time: timing.Zero, Microstep: 0},
			{Time: timing.Zero, Microstep: 1},
			{Time: timing.Zero, Microstep: 2},
		}))
	})

	It("should round requested times up to the resolution", func() {
		s := newScripted("S")
		var got timing.Time
		s.init = func(s *scripted) error {
			var err error
			got, err = s.FireAt(timing.FromSeconds(1.0000000001))
			return err
		}
		top.AddActor(s)

		Expect(top.Initialize()).To(Succeed())
		Expect(got).To(Equal(timing.New(1, 1_000_000_000)))
	})

	It("should not fire an actor again after its postfire returns false", func() {
		a := newSource("A", log, 1, 0, 1, 2)
		s := newSink("S", log)
		s.stopAt = 1
		top.AddActors(a, s)
		top.MustConnect(a.out, s.in)

		Expect(run(top)).To(Succeed())
		Expect(s.received).To(Equal([]int64{1}))
		Expect(log.entries).To(Equal([]string{"A", "S", "A", "A"}))
	})

	It("should stop the run on a firing error and still wrap up", func() {
		a := newSource("A", log, 1, 0)
		a.err = errors.New("broken sensor")
		s := newSink("S", log)
		top.AddActors(a, s)
		top.MustConnect(a.out, s.in)

		err := run(top)

		var execErr *actor.ActorExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		Expect(execErr.Actor).To(Equal("Top.A"))
		Expect(execErr.Phase).To(Equal("fire"))
		Expect(s.wrapups).To(Equal(1))
		Expect(dir.State()).To(Equal(Finished))
	})

	It("should stop at the stop time", func() {
		top, dir = newTop(MakeBuilder().WithStopTime(timing.FromSeconds(1.5)))
		a := newSource("A", log, 1, 0, 1, 2, 3)
		top.AddActor(a)

		Expect(run(top)).To(Succeed())
		Expect(secs(log.tags)).To(Equal([]float64{0, 1}))
	})

	It("should reject zero-delay loops", func() {
		top, dir = newTop(MakeBuilder().WithMaxMicrosteps(10))
		e := &echo{Base: actor.NewBase("E"), repeat: 1000}
		top.AddActor(e)

		err := run(top)
		Expect(errors.Is(err, actor.ErrConfiguration)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("zero-delay loop"))
	})

	It("should reject zero-delay cycles at initialization", func() {
		a := newSink("A", log)
		b := newSink("B", log)
		top.AddActors(a, b)
		top.MustConnect(a.out, b.in)
		top.MustConnect(b.out, a.in)

		err := top.Initialize()
		Expect(errors.Is(err, actor.ErrConfiguration)).To(BeTrue())
	})

	It("should cancel pending events of an actor", func() {
		a := newSource("A", log, 1, 1, 2)
		top.AddActor(a)

		Expect(top.Initialize()).To(Succeed())
		dir.Cancel(a)

		Expect(dir.NextEventTime()).To(Equal(timing.Infinity))
	})

	It("should stop when asked", func() {
		s := newScripted("S")
		s.init = func(s *scripted) error {
			_, err := s.FireAt(timing.Zero)
			return err
		}
		s.fire = func(s *scripted) error {
			_, err := s.FireAfter(timing.FromSeconds(1))
			if s.ModelTime().Equal(timing.FromSeconds(3)) {
				dir.Stop()
			}

			return err
		}
		top.AddActor(s)

		Expect(run(top)).To(Succeed())
		Expect(dir.ModelTime()).To(Equal(timing.FromSeconds(3)))
		Expect(dir.StopRequested()).To(BeTrue())
	})

	Context("with a deadline gate", func() {
		var (
			clock *timing.ManualClock
			gate  *fakeGate
		)

		BeforeEach(func() {
			clock = timing.NewManualClock()
			gate = &fakeGate{}
		})

		It("should report a missed deadline and still dispatch", func() {
			top, dir = newTop(MakeBuilder().WithClock(clock).WithDeadlineGate(gate))
			collector := &hooking.HookCollector{
				Positions: []*hooking.HookPos{HookPosDeadlineMissed},
			}
			dir.AcceptHook(collector)

			a := newSource("A", log, 7, 5)
			s := newSink("S", log)
			s.in.WithRelativeDeadline(timing.FromSeconds(0.01))
			top.AddActors(a, s)
			top.MustConnect(a.out, s.in)

			clock.Set(timing.FromSeconds(5.02))

			Expect(run(top)).To(Succeed())
			Expect(gate.admitted).To(Equal(1))
			Expect(gate.misses).To(HaveLen(1))
			Expect(collector.Ctxs).To(HaveLen(1))
			Expect(collector.Ctxs[0].Item).To(BeIdenticalTo(s))
			Expect(s.received).To(Equal([]int64{7}))
		})

		It("should not report deadlines that are met", func() {
			top, dir = newTop(MakeBuilder().WithClock(clock).WithDeadlineGate(gate))
			a := newSource("A", log, 7, 5)
			s := newSink("S", log)
			s.in.WithRelativeDeadline(timing.FromSeconds(0.01))
			top.AddActors(a, s)
			top.MustConnect(a.out, s.in)

			clock.Set(timing.FromSeconds(5.005))

			Expect(run(top)).To(Succeed())
			Expect(gate.misses).To(BeEmpty())
		})

		It("should drop late events when the gate says so", func() {
			gate.drop = true
			top, dir = newTop(MakeBuilder().WithClock(clock).WithDeadlineGate(gate))
			a := newSource("A", log, 7, 5)
			s := newSink("S", log)
			s.in.WithRelativeDeadline(timing.FromSeconds(0.01))
			top.AddActors(a, s)
			top.MustConnect(a.out, s.in)

			clock.Set(timing.FromSeconds(6))

			Expect(run(top)).To(Succeed())
			Expect(s.received).To(BeEmpty())
		})
	})

	It("should wait for the platform clock when synchronizing", func() {
		clock := timing.NewManualClock()
		top, dir = newTop(MakeBuilder().
			WithClock(clock).
			WithSynchronizeToRealTime(true))
		a := newSource("A", log, 1, 1, 3)
		top.AddActor(a)

		Expect(run(top)).To(Succeed())
		Expect(clock.Now()).To(Equal(timing.FromSeconds(3)))
	})
})
