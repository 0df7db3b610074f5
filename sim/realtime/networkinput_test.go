package realtime

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/manager"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

type collector struct {
	*actor.Base
	in       *actor.Port
	received []token.Token
	times    []timing.Time
	tags     []timing.Tag
}

func newCollector(name string) *collector {
	c := &collector{Base: actor.NewBase(name)}
	c.in = c.AddInputPort("input")

	return c
}

func (c *collector) Fire() error {
	for c.in.HasToken(0) {
		tok, err := c.in.Get(0)
		if err != nil {
			return err
		}

		c.received = append(c.received, tok)
		c.times = append(c.times, c.ModelTime())
		c.tags = append(c.tags, c.Tag())
	}

	return nil
}

type alarm struct {
	*actor.Base
	at    timing.Time
	fired bool
}

func (a *alarm) Initialize() error {
	_, err := a.FireAt(a.at)
	return err
}

func (a *alarm) Fire() error {
	a.fired = true
	return nil
}

// sender puts a packet on a link at a given model time.
type sender struct {
	*actor.Base
	at     timing.Time
	link   *ChannelLink
	packet token.Token
}

func (s *sender) Initialize() error {
	_, err := s.FireAt(s.at)
	return err
}

func (s *sender) Fire() error {
	s.link.Send(s.packet)
	return nil
}

var _ = Describe("NetworkInput", func() {
	var (
		clock *timing.ManualClock
		link  *ChannelLink
		dev   *NetworkInput
		sink  *collector
	)

	build := func(policy Policy) (*manager.Manager, *Gate, *actor.Composite) {
		gate := MakeGateBuilder().WithPolicy(policy).Build()
		top := actor.MakeCompositeBuilder().
			WithDirector(de.MakeBuilder().
				WithClock(clock).
				WithDeadlineGate(gate).
				Build("DE")).
			Build("Top")
		model := actor.MakeModelBuilder().Build(top)

		dev = MakeNetworkInputBuilder().
			WithPollInterval(timing.FromSeconds(1)).
			WithMaxWaitCount(3).
			Build("Net", link)
		sink = newCollector("Sink")
		top.AddActors(dev, sink)
		top.MustConnect(dev.Output, sink.in)

		return manager.MakeBuilder().Build(model), gate, top
	}

	packet := func(at float64, microstep int, payload int64, deadline float64) token.Token {
		p := Packet{
			Tag:              timing.Tag{Time: timing.FromSeconds(at), Microstep: microstep},
			Payload:          token.NewInt(payload),
			RelativeDeadline: timing.Infinity,
		}

		if deadline > 0 {
			p.RelativeDeadline = timing.FromSeconds(deadline)
		}

		return MakePacket(p)
	}

	ints := func(toks []token.Token) []int64 {
		out := make([]int64, len(toks))
		for i, t := range toks {
			out[i], _ = t.Int()
		}

		return out
	}

	BeforeEach(func() {
		clock = timing.NewManualClock()
		link = NewChannelLink(8)
	})

	It("should report a missed deadline and still emit", func() {
		mgr, gate, _ := build(ReportLate)
		link.Send(packet(5, 0, 42, 0.01))
		clock.Set(timing.New(5, 20_000_000_000_000_000))

		Expect(mgr.Run(context.Background())).To(Succeed())

		Expect(ints(sink.received)).To(Equal([]int64{42}))
		Expect(sink.times).To(Equal([]timing.Time{timing.FromSeconds(5)}))

		misses := gate.Misses()
		Expect(misses).To(HaveLen(1))
		Expect(misses[0].Actor).To(Equal("Top.Net"))
		Expect(misses[0].Deadline).To(Equal(timing.New(5, 10_000_000_000_000_000)))
		Expect(gate.Admitted()).To(Equal(1))
		Expect(dev.LinkDead()).To(BeTrue())
	})

	It("should not report deadlines that are met", func() {
		mgr, gate, _ := build(ReportLate)
		link.Send(packet(5, 0, 42, 0.01))
		clock.Set(timing.New(5, 5_000_000_000_000_000))

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(gate.Misses()).To(BeEmpty())
		Expect(dev.Emitted()).To(Equal(1))
	})

	It("should drop late packets with the drop policy", func() {
		mgr, gate, _ := build(DropLate)
		link.Send(packet(5, 0, 42, 0.01))
		clock.Set(timing.FromSeconds(6))

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(sink.received).To(BeEmpty())
		Expect(gate.Misses()).To(HaveLen(1))
	})

	It("should emit a packet at its own microstep", func() {
		mgr, _, _ := build(ReportLate)
		link.Send(packet(2.5, 1, 9, 0))

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(ints(sink.received)).To(Equal([]int64{9}))
		Expect(sink.tags).To(Equal([]timing.Tag{
			{Time: timing.FromSeconds(2.5), Microstep: 1},
		}))
	})

	It("should check the deadline of a packet that arrives late", func() {
		mgr, gate, top := build(ReportLate)
		top.AddActor(&sender{
			Base:   actor.NewBase("Sender"),
			at:     timing.FromSeconds(0.7),
			link:   link,
			packet: packet(0.5, 0, 99, 0.01),
		})
		clock.Set(timing.FromSeconds(1))

		Expect(mgr.Run(context.Background())).To(Succeed())

		Expect(ints(sink.received)).To(Equal([]int64{99}))
		Expect(sink.times).To(Equal([]timing.Time{timing.FromSeconds(1)}))
		Expect(gate.Admitted()).To(Equal(1))
		Expect(gate.Checked()).To(Equal(1))

		misses := gate.Misses()
		Expect(misses).To(HaveLen(1))
		Expect(misses[0].Actor).To(Equal("Top.Net"))
		Expect(misses[0].Deadline).To(Equal(
			timing.FromSeconds(0.5).Add(timing.FromSeconds(0.01))))
		Expect(misses[0].Tag).To(Equal(
			timing.Tag{Time: timing.FromSeconds(1), Microstep: 1}))
	})

	It("should discard a late packet whose firing was dropped", func() {
		mgr, gate, top := build(DropLate)
		top.AddActor(&sender{
			Base:   actor.NewBase("Sender"),
			at:     timing.FromSeconds(0.7),
			link:   link,
			packet: packet(0.5, 0, 99, 0.01),
		})
		clock.Set(timing.FromSeconds(1))

		Expect(mgr.Run(context.Background())).To(Succeed())

		Expect(sink.received).To(BeEmpty())
		Expect(dev.Emitted()).To(Equal(0))
		Expect(gate.Misses()).To(HaveLen(1))
		Expect(dev.LinkDead()).To(BeTrue())
	})

	It("should emit packets of the same tag in depth order", func() {
		mgr, _, _ := build(ReportLate)

		deep := Packet{
			Tag:              timing.Tag{Time: timing.FromSeconds(2)},
			Payload:          token.NewInt(2),
			RelativeDeadline: timing.Infinity,
			Depth:            5,
		}
		shallow := deep
		shallow.Payload = token.NewInt(1)
		shallow.Depth = 1

		link.Send(MakePacket(deep))
		link.Send(MakePacket(shallow))
		link.Send(packet(1, 0, 0, 0))

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(ints(sink.received)).To(Equal([]int64{0, 1, 2}))
	})

	It("should finish only the device when its link goes quiet", func() {
		mgr, _, top := build(ReportLate)
		other := &alarm{Base: actor.NewBase("Alarm"), at: timing.FromSeconds(10)}
		top.AddActor(other)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(dev.LinkDead()).To(BeTrue())
		Expect(other.fired).To(BeTrue())
		Expect(sink.received).To(BeEmpty())
	})

	It("should emit what it holds after the link closes", func() {
		mgr, _, _ := build(ReportLate)
		link.Send(packet(1, 0, 7, 0))
		link.Close()

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(ints(sink.received)).To(Equal([]int64{7}))
		Expect(dev.LinkDead()).To(BeTrue())
	})

	It("should fail on malformed packets", func() {
		mgr, _, _ := build(ReportLate)
		link.Send(token.NewRecord(map[string]token.Token{
			FieldTimestamp: token.NewDouble(1),
			FieldPayload:   token.NewInt(1),
		}))

		err := mgr.Run(context.Background())

		var execErr *actor.ActorExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		Expect(execErr.Actor).To(Equal("Top.Net"))
		Expect(errors.Is(err, ErrMalformedPacket)).To(BeTrue())
	})

	It("should reject a zero poll interval", func() {
		top := actor.MakeCompositeBuilder().
			WithDirector(de.MakeBuilder().Build("DE")).
			Build("Top")
		actor.MakeModelBuilder().Build(top)
		top.AddActor(MakeNetworkInputBuilder().
			WithPollInterval(timing.Zero).
			Build("Net", link))

		err := top.Initialize()
		Expect(errors.Is(err, actor.ErrConfiguration)).To(BeTrue())
	})
})
