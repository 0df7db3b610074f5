package de

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
)

var errUnplugged = errors.New("clock unplugged")

type brokenClock struct {
	timing.ManualClock
}

func (c *brokenClock) WaitUntil(context.Context, timing.Time) error {
	return errUnplugged
}

var _ = Describe("Schedule", func() {
	var (
		top *actor.Composite
		dir *Director
		log *firingLog
	)

	BeforeEach(func() {
		top, dir = newTop(MakeBuilder())
		log = &firingLog{}
	})

	It("should keep the microstep of a request for a later time", func() {
		var got timing.Tag

		s := newScripted("S")
		s.init = func(s *scripted) error {
			var err error
			got, err = dir.FireAtMicrostep(s, timing.FromSeconds(3), 2)
			return err
		}
		s.fire = func(s *scripted) error {
			log.add(s.Name(), s.Tag())
			return nil
		}
		top.AddActor(s)

		Expect(run(top)).To(Succeed())

		want := timing.Tag{Time: timing.FromSeconds(3), Microstep: 2}
		Expect(got).To(Equal(want))
		Expect(log.tags).To(Equal([]timing.Tag{want}))
	})

	It("should honor a larger microstep at the current time", func() {
		var got timing.Tag

		s := newScripted("S")
		s.init = func(s *scripted) error {
			var err error
			got, err = dir.Schedule(actor.FireRequest{
				Actor:     s,
				Time:      timing.Zero,
				Microstep: 3,
			})
			return err
		}
		top.AddActor(s)

		Expect(top.Initialize()).To(Succeed())
		Expect(got).To(Equal(timing.Tag{Time: timing.Zero, Microstep: 3}))
	})

	It("should carry the deadline and depth of a request into the queue", func() {
		s := newScripted("S")
		s.init = func(s *scripted) error {
			_, err := dir.Schedule(actor.FireRequest{
				Actor:       s,
				Time:        timing.FromSeconds(1),
				Deadline:    timing.FromSeconds(1.5),
				HasDeadline: true,
				Depth:       7,
			})
			return err
		}
		top.AddActor(s)

		Expect(top.Initialize()).To(Succeed())

		events := dir.Queue().Snapshot()
		Expect(events).To(HaveLen(1))
		Expect(events[0].Deadline).To(Equal(timing.FromSeconds(1.5)))
		Expect(events[0].Depth).To(Equal(7))
	})

	It("should treat a request without a deadline as having none", func() {
		clock := timing.NewManualClock()
		gate := &fakeGate{}
		top, dir = newTop(MakeBuilder().WithClock(clock).WithDeadlineGate(gate))

		s := newScripted("S")
		s.init = func(s *scripted) error {
			_, err := dir.Schedule(actor.FireRequest{
				Actor: s,
				Time:  timing.FromSeconds(1),
			})
			return err
		}
		s.fire = func(s *scripted) error {
			log.add(s.Name(), s.Tag())
			return nil
		}
		top.AddActor(s)

		clock.Set(timing.FromSeconds(100))

		Expect(run(top)).To(Succeed())
		Expect(gate.admitted).To(Equal(0))
		Expect(gate.misses).To(BeEmpty())
		Expect(log.entries).To(Equal([]string{"S"}))
	})

	It("should deliver tag, deadline and depth into a tagged mailbox", func() {
		var (
			mb   *receiver.TaggedMailbox
			seen []int64
		)

		a := newSource("A", log, 7, 5)
		s := newScripted("S")
		s.in.UseTaggedMailbox().WithRelativeDeadline(timing.FromSeconds(0.01))
		s.fire = func(s *scripted) error {
			mb = s.in.Receivers()[0].(*receiver.TaggedMailbox)

			for s.in.HasToken(0) && len(seen) == 0 {
				tok, err := s.in.Get(0)
				if err != nil {
					return err
				}

				v, _ := tok.Int()
				seen = append(seen, v)
			}

			return nil
		}
		top.AddActors(a, s)
		top.MustConnect(a.out, s.in)

		Expect(run(top)).To(Succeed())

		Expect(seen).To(Equal([]int64{7}))
		Expect(mb.Tag()).To(Equal(timing.Tag{Time: timing.FromSeconds(5)}))
		Expect(mb.Deadline()).To(Equal(
			timing.FromSeconds(5).Add(timing.FromSeconds(0.01))))
		Expect(mb.Depth()).To(Equal(top.Model().Depth(s)))
	})

	It("should fail the firing when the platform clock cannot wait", func() {
		top, dir = newTop(MakeBuilder().
			WithClock(&brokenClock{}).
			WithSynchronizeToRealTime(true))
		a := newSource("A", log, 1, 1)
		top.AddActor(a)

		err := run(top)

		var execErr *actor.ActorExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		Expect(execErr.Actor).To(Equal("Top"))
		Expect(execErr.Phase).To(Equal("synchronize"))
		Expect(errors.Is(err, errUnplugged)).To(BeTrue())
		Expect(log.entries).To(BeEmpty())
	})
})
