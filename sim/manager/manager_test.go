package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/timing"
)

// probe fires at fixed times and runs onFire each time.
type probe struct {
	*actor.Base
	times   []float64
	onFire  func(p *probe) error
	fired   []timing.Time
	wrapups int
}

func newProbe(name string, times ...float64) *probe {
	return &probe{Base: actor.NewBase(name), times: times}
}

func (p *probe) Initialize() error {
	p.fired = nil

	for _, t := range p.times {
		if _, err := p.FireAt(timing.FromSeconds(t)); err != nil {
			return err
		}
	}

	return nil
}

func (p *probe) Fire() error {
	p.fired = append(p.fired, p.ModelTime())

	if p.onFire != nil {
		return p.onFire(p)
	}

	return nil
}

func (p *probe) Wrapup() error {
	p.wrapups++
	return nil
}

type countingCommit struct {
	commits int
}

func (c *countingCommit) Commit() error {
	c.commits++
	return nil
}

var _ = Describe("Manager", func() {
	var (
		mockCtrl *gomock.Controller
		top      *actor.Composite
		model    *actor.Model
		mgr      *Manager
		journal  []string
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		top = actor.MakeCompositeBuilder().
			WithDirector(de.MakeBuilder().Build("DE")).
			Build("Top")
		model = actor.MakeModelBuilder().Build(top)
		mgr = MakeBuilder().Build(model)
		journal = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run a model to the end", func() {
		p := newProbe("P", 1, 2, 3)
		top.AddActor(p)

		iterations := &hooking.HookCollector{
			Positions: []*hooking.HookPos{HookPosBeforeIteration},
		}
		mgr.AcceptHook(iterations)

		Expect(mgr.Run(context.Background())).To(Succeed())

		Expect(p.fired).To(HaveLen(3))
		Expect(p.wrapups).To(Equal(1))
		Expect(mgr.Iteration()).To(Equal(int64(3)))
		Expect(iterations.Ctxs).To(HaveLen(3))
		Expect(mgr.State()).To(Equal(Finished))
		Expect(mgr.RunID()).NotTo(BeEmpty())
	})

	It("should run changes only between iterations", func() {
		p := newProbe("P", 1, 2)
		p.onFire = func(p *probe) error {
			t := p.ModelTime()
			journal = append(journal, fmt.Sprintf("fire %s", t))

			if t.Equal(timing.FromSeconds(1)) {
				p.Model().RequestChange(actor.ChangeRequest{
					Kind:   actor.ChangeMutation,
					Source: p.FullName(),
					Mutate: func() error {
						journal = append(journal, "mutated")
						return nil
					},
				})

				journal = append(journal, "after request")
			}

			return nil
		}
		top.AddActor(p)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(journal).To(Equal([]string{
			"fire 1", "after request", "mutated", "fire 2",
		}))
	})

	It("should drop requests with a key that already ran", func() {
		listener := NewMockChangeListener(mockCtrl)
		listener.EXPECT().ChangeExecuted(gomock.Any()).Times(1)
		mgr.AddChangeListener(listener)

		discarded := 0
		ran := 0

		p := newProbe("P", 1)
		p.onFire = func(p *probe) error {
			for i := 0; i < 2; i++ {
				p.Model().RequestChange(actor.ChangeRequest{
					Kind:      actor.ChangeMutation,
					Key:       "resize",
					Mutate:    func() error { ran++; return nil },
					Discarded: func() { discarded++ },
				})
			}

			return nil
		}
		top.AddActor(p)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(ran).To(Equal(1))
		Expect(discarded).To(Equal(1))
	})

	It("should commit one transition per target and iteration", func() {
		m1 := &countingCommit{}
		m2 := &countingCommit{}
		n := &countingCommit{}
		discarded := 0

		dropped := &hooking.HookCollector{
			Positions: []*hooking.HookPos{HookPosChangeDiscarded},
		}
		mgr.AcceptHook(dropped)

		p := newProbe("P", 1)
		p.onFire = func(p *probe) error {
			for _, req := range []actor.ChangeRequest{
				{Kind: actor.ChangeModeTransition, Target: "M", Transition: m1},
				{Kind: actor.ChangeModeTransition, Target: "M", Transition: m2,
					Discarded: func() { discarded++ }},
				{Kind: actor.ChangeModeTransition, Target: "N", Transition: n},
			} {
				p.Model().RequestChange(req)
			}

			return nil
		}
		top.AddActor(p)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(m1.commits).To(Equal(1))
		Expect(m2.commits).To(Equal(0))
		Expect(n.commits).To(Equal(1))
		Expect(discarded).To(Equal(1))
		Expect(dropped.Ctxs).To(HaveLen(1))
	})

	It("should run a request only once", func() {
		c := &countingCommit{}

		p := newProbe("P", 1, 2)
		p.onFire = func(p *probe) error {
			p.Model().RequestChange(actor.ChangeRequest{
				ID:         "same",
				Kind:       actor.ChangeModeTransition,
				Target:     fmt.Sprintf("T%d", len(p.fired)),
				Transition: c,
			})

			return nil
		}
		top.AddActor(p)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(c.commits).To(Equal(1))
	})

	It("should remove actors between iterations", func() {
		a := newProbe("A", 1, 2, 3)
		a.onFire = func(p *probe) error {
			p.Model().RequestChange(actor.ChangeRequest{
				Kind:  actor.ChangeRemoveActor,
				Actor: p,
			})

			return nil
		}
		b := newProbe("B", 1, 2, 3)
		top.AddActors(a, b)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(a.fired).To(HaveLen(1))
		Expect(b.fired).To(HaveLen(3))
		Expect(model.Contains(a)).To(BeFalse())
	})

	It("should stop on a firing error and still wrap up every actor", func() {
		a := newProbe("A", 1, 2, 3)
		a.onFire = func(p *probe) error {
			if len(p.fired) == 2 {
				return errors.New("sensor offline")
			}

			return nil
		}
		b := newProbe("B", 1, 2, 3)
		top.AddActors(a, b)

		err := mgr.Run(context.Background())

		var execErr *actor.ActorExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		Expect(execErr.Actor).To(Equal("Top.A"))
		Expect(a.wrapups).To(Equal(1))
		Expect(b.wrapups).To(Equal(1))
		Expect(mgr.State()).To(Equal(Finished))
	})

	It("should report failed changes", func() {
		boom := errors.New("boom")
		listener := NewMockChangeListener(mockCtrl)
		listener.EXPECT().ChangeFailed(gomock.Any(), boom)
		mgr.AddChangeListener(listener)

		discarded := 0
		p := newProbe("P", 1, 2)
		p.onFire = func(p *probe) error {
			p.Model().RequestChange(actor.ChangeRequest{
				Kind:   actor.ChangeMutation,
				Mutate: func() error { return boom },
			})
			p.Model().RequestChange(actor.ChangeRequest{
				Kind:      actor.ChangeMutation,
				Mutate:    func() error { return nil },
				Discarded: func() { discarded++ },
			})

			return nil
		}
		top.AddActor(p)

		err := mgr.Run(context.Background())
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(p.fired).To(HaveLen(1))
		Expect(discarded).To(Equal(1))
		Expect(p.wrapups).To(Equal(1))
	})

	It("should reject changes without a body", func() {
		p := newProbe("P", 1)
		p.onFire = func(p *probe) error {
			p.Model().RequestChange(actor.ChangeRequest{Kind: actor.ChangeMutation})
			return nil
		}
		top.AddActor(p)

		err := mgr.Run(context.Background())
		Expect(errors.Is(err, actor.ErrConfiguration)).To(BeTrue())
	})

	It("should stop when asked", func() {
		p := newProbe("P", 1, 2, 3, 4)
		p.onFire = func(p *probe) error {
			if len(p.fired) == 2 {
				mgr.Stop()
			}

			return nil
		}
		top.AddActor(p)

		Expect(mgr.Run(context.Background())).To(Succeed())
		Expect(p.fired).To(HaveLen(2))
		Expect(p.wrapups).To(Equal(1))
	})

	It("should not iterate with a cancelled context", func() {
		p := newProbe("P", 1, 2)
		top.AddActor(p)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(mgr.Run(ctx)).To(Succeed())
		Expect(mgr.Iteration()).To(Equal(int64(0)))
		Expect(p.wrapups).To(Equal(1))
	})

	It("should pause and continue", func() {
		p := newProbe("P", 1, 2)
		top.AddActor(p)

		mgr.Pause()
		Expect(mgr.IsPaused()).To(BeTrue())

		done := make(chan error)
		go func() {
			done <- mgr.Run(context.Background())
		}()

		Consistently(mgr.Iteration, 50*time.Millisecond).Should(BeZero())

		mgr.Continue()

		Eventually(done).Should(Receive(BeNil()))
		Expect(mgr.Iteration()).To(Equal(int64(2)))
	})
})
