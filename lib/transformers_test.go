package lib

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

var _ = Describe("Merge", func() {
	It("should forward channel by channel", func() {
		m := newTestModel(0)
		a := ramp("A", 0, 2)
		b := ramp("B", 10, 2)
		merge := NewMerge("Merge")
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(a, b, merge, rec)
		m.top.MustConnect(a.Output, merge.Input)
		m.top.MustConnect(b.Output, merge.Input)
		m.top.MustConnect(merge.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0, 10, 1, 11}))
	})
})

var _ = Describe("Scale", func() {
	It("should multiply each token", func() {
		m := newTestModel(0)
		r := ramp("Ramp", 1, 3)
		s := NewScale("Scale", token.NewInt(3))
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, s, rec)
		m.top.MustConnect(r.Output, s.Input)
		m.top.MustConnect(s.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(rec.Tokens()).To(Equal([]token.Token{
			token.NewInt(3), token.NewInt(6), token.NewInt(9),
		}))
	})

	It("should fail on a token it cannot multiply", func() {
		r := MakeRampBuilder().
			WithInit(token.NewString("x")).
			WithLimit(1).
			Build("Ramp")
		m := newTestModel(0)
		s := NewScale("Scale", token.NewDouble(0.5))
		m.top.AddActors(r, s)
		m.top.MustConnect(r.Output, s.Input)

		err := m.run()

		var execErr *actor.ActorExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		Expect(execErr.Actor).To(Equal("Top.Scale"))
		Expect(errors.Is(err, token.ErrWrongKind)).To(BeTrue())
	})

	It("should consume inputs that have no output channel", func() {
		m := newTestModel(0)
		r := ramp("Ramp", 1, 3)
		s := NewScale("Scale", token.NewInt(2))
		m.top.AddActors(r, s)
		m.top.MustConnect(r.Output, s.Input)

		Expect(m.run()).To(Succeed())
		Expect(s.Input.HasToken(0)).To(BeFalse())
	})
})

var _ = Describe("TimedDelay", func() {
	It("should shift tokens in time", func() {
		m := newTestModel(0)
		r := ramp("Ramp", 0, 3)
		d := NewTimedDelay("Delay", timing.FromSeconds(0.5))
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, d, rec)
		m.top.MustConnect(r.Output, d.Input)
		m.top.MustConnect(d.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0, 1, 2}))
		Expect(times(rec)).To(Equal([]float64{0.5, 1.5, 2.5}))
		Expect(d.Pending()).To(BeZero())
	})

	It("should delay by one microstep when the delay is zero", func() {
		m := newTestModel(0)
		r := ramp("Ramp", 0, 1)
		d := NewTimedDelay("Delay", timing.Zero)
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, d, rec)
		m.top.MustConnect(r.Output, d.Input)
		m.top.MustConnect(d.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		entries := rec.Entries()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Tag).To(Equal(timing.Tag{Time: timing.Zero, Microstep: 1}))
	})

	It("should break a feedback loop", func() {
		m := newTestModel(3.5)
		r := ramp("Ramp", 1, 1)
		merge := NewMerge("Merge")
		d := NewTimedDelay("Delay", timing.FromSeconds(1))
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, merge, d, rec)
		m.top.MustConnect(r.Output, merge.Input)
		m.top.MustConnect(d.Output, merge.Input)
		m.top.MustConnect(merge.Output, d.Input)
		m.top.MustConnect(merge.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{1, 1, 1, 1}))
		Expect(times(rec)).To(Equal([]float64{0, 1, 2, 3}))
	})

	It("should reject a negative delay", func() {
		m := newTestModel(0)
		m.top.AddActor(NewTimedDelay("Delay", timing.FromSeconds(-1)))

		Expect(errors.Is(m.run(), actor.ErrConfiguration)).To(BeTrue())
	})
})

var _ = Describe("Recorder", func() {
	It("should stop recording at its limit", func() {
		m := newTestModel(5.5)
		r := ramp("Ramp", 0, 0)
		rec := NewRecorder("Rec", 2)
		var seen []int
		rec.OnEntry(func(e RecordEntry) { seen = append(seen, e.Channel) })
		m.top.AddActors(r, rec)
		m.top.MustConnect(r.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0, 1}))
		Expect(seen).To(Equal([]int{0, 0}))
		Expect(r.Count()).To(Equal(6))
	})
})
