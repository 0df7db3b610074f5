package lib

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

var _ = Describe("Ramp", func() {
	It("should count once per period", func() {
		m := newTestModel(0)
		r := ramp("Ramp", 0, 3)
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, rec)
		m.top.MustConnect(r.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0, 1, 2}))
		Expect(times(rec)).To(Equal([]float64{0, 1, 2}))
		Expect(r.Count()).To(Equal(3))
	})

	It("should widen to doubles", func() {
		m := newTestModel(0)
		r := MakeRampBuilder().
			WithInit(token.NewDouble(1.5)).
			WithStep(token.NewInt(1)).
			WithPeriod(timing.FromSeconds(0.5)).
			WithLimit(2).
			Build("Ramp")
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, rec)
		m.top.MustConnect(r.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(rec.Tokens()).To(Equal([]token.Token{
			token.NewDouble(1.5), token.NewDouble(2.5),
		}))
		Expect(times(rec)).To(Equal([]float64{0, 0.5}))
	})

	It("should reject a zero period", func() {
		m := newTestModel(0)
		r := MakeRampBuilder().WithPeriod(timing.Zero).Build("Ramp")
		m.top.AddActor(r)

		Expect(errors.Is(m.run(), actor.ErrConfiguration)).To(BeTrue())
	})
})

var _ = Describe("PeriodicSampler", func() {
	It("should sample at each period", func() {
		m := newTestModel(4.5)
		r := ramp("Ramp", 0, 5)
		s := NewPeriodicSampler("Sampler", timing.FromSeconds(2))
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, s, rec)
		m.top.MustConnect(r.Output, s.Input)
		m.top.MustConnect(s.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0, 2, 4}))
		Expect(times(rec)).To(Equal([]float64{0, 2, 4}))
		Expect(s.Samples()).To(Equal(3))
	})

	It("should hold the last value", func() {
		m := newTestModel(3.5)
		r := ramp("Ramp", 0, 2)
		s := NewPeriodicSampler("Sampler", timing.FromSeconds(1))
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(r, s, rec)
		m.top.MustConnect(r.Output, s.Input)
		m.top.MustConnect(s.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0, 1, 1, 1}))
	})

	It("should sample only as many channels as it can send", func() {
		m := newTestModel(0.5)
		a := ramp("A", 0, 1)
		b := ramp("B", 100, 1)
		s := NewPeriodicSampler("Sampler", timing.FromSeconds(1))
		rec := NewRecorder("Rec", 0)
		m.top.AddActors(a, b, s, rec)
		m.top.MustConnect(a.Output, s.Input)
		m.top.MustConnect(b.Output, s.Input)
		m.top.MustConnect(s.Output, rec.Input)

		Expect(m.run()).To(Succeed())

		Expect(values(rec)).To(Equal([]float64{0}))
	})

	It("should reject a zero period", func() {
		m := newTestModel(1)
		m.top.AddActor(NewPeriodicSampler("Sampler", timing.Zero))

		Expect(errors.Is(m.run(), actor.ErrConfiguration)).To(BeTrue())
	})
})
