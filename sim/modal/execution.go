package modal

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

func (d *Director) fullName(a actor.Actor) string {
	if m := d.container.Model(); m != nil {
		return m.FullName(a)
	}

	return a.Name()
}

// Initialize puts the model in its initial mode and initializes every
// refinement. Requests made by refinements of other modes are kept until
// their mode is entered.
func (d *Director) Initialize() error {
	if len(d.modes) == 0 {
		return actor.NewConfigurationError(d.containerName(),
			"modal model has no modes")
	}

	initial := d.mode(d.initial)
	if initial == nil {
		return actor.NewConfigurationError(d.containerName(),
			"initial mode %s is not declared", d.initial)
	}

	for _, child := range d.container.Children() {
		if d.modeOf(child) == nil {
			return actor.NewConfigurationError(d.containerName(),
				"%s does not refine any mode", child.Name())
		}
	}

	if d.executive() == nil {
		return actor.NewConfigurationError(d.containerName(),
			"a modal model must be inside another composite")
	}

	d.current = initial
	d.fired = false
	d.chosen = nil
	d.queued = false
	d.stop.Store(false)
	d.finished = make(map[actor.Actor]bool)
	d.pending = make(map[actor.Actor][]timing.Time)
	d.inputs = make(map[string]token.Token)
	d.outputs = make(map[string]token.Token)

	for _, m := range d.modes {
		if err := d.initRefinement(m.Refinement); err != nil {
			return err
		}
	}

	d.logger.WithFields(logrus.Fields{
		"actor": d.containerName(),
		"mode":  d.current.Name,
	}).Debug("modal model initialized")

	return nil
}

func (d *Director) initRefinement(a actor.Actor) error {
	if _, ok := a.(*actor.Composite); !ok {
		for _, p := range a.Ports() {
			p.ClearReceivers()
		}
	}

	if err := a.Initialize(); err != nil {
		return actor.WrapExecution(d.fullName(a), "initialize", err)
	}

	return nil
}

// Prefire starts an iteration of the modal model.
func (d *Director) Prefire() (bool, error) {
	clear(d.inputs)
	clear(d.outputs)

	return !d.stop.Load(), nil
}

// Fire fires the refinement of the current mode and then picks the first
// enabled transition out of the mode. The transition is not taken yet.
func (d *Director) Fire() error {
	ref := d.current.Refinement
	d.fired = false

	if d.finished[ref] {
		return nil
	}

	d.forgetPast(ref, d.ModelTime())

	ready, err := ref.Prefire()
	if err != nil {
		return actor.WrapExecution(d.fullName(ref), "prefire", err)
	}

	if !ready {
		return nil
	}

	d.fired = true

	if err := ref.Fire(); err != nil {
		return actor.WrapExecution(d.fullName(ref), "fire", err)
	}

	d.choose()

	return nil
}

func (d *Director) forgetPast(a actor.Actor, now timing.Time) {
	kept := d.pending[a][:0]

	for _, t := range d.pending[a] {
		if t.After(now) {
			kept = append(kept, t)
		}
	}

	d.pending[a] = kept
}

func (d *Director) choose() {
	if d.chosen != nil {
		return
	}

	ctx := GuardContext{
		Mode:    d.current.Name,
		Tag:     d.Tag(),
		inputs:  d.inputs,
		outputs: d.outputs,
	}

	for i := range d.transitions {
		t := d.transitions[i]
		if t.From != d.current.Name {
			continue
		}

		if t.Guard(ctx) {
			d.chosen = &t
			return
		}
	}
}

// Postfire post-fires the refinement and, if a transition was chosen, asks
// the manager to take it at the end of the iteration. Only one transition
// may wait for commit at a time; later choices are dropped.
func (d *Director) Postfire() (bool, error) {
	ref := d.current.Refinement

	if d.fired {
		d.fired = false

		cont, err := ref.Postfire()
		if err != nil {
			return false, actor.WrapExecution(d.fullName(ref), "postfire", err)
		}

		if !cont {
			d.finished[ref] = true
			d.Cancel(ref)
		}
	}

	if d.chosen != nil {
		t := *d.chosen
		d.chosen = nil

		if err := d.requestTransition(t); err != nil {
			return false, err
		}
	}

	return !d.stop.Load(), nil
}

func (d *Director) requestTransition(t Transition) error {
	name := d.containerName()

	if d.queued {
		d.logger.WithFields(logrus.Fields{
			"actor":      name,
			"mode":       d.current.Name,
			"transition": t.String(),
		}).Warn("transition dropped, another one is waiting to commit")

		d.invokeHook(HookPosTransitionDropped, t)

		return nil
	}

	m := d.container.Model()
	if m == nil || m.ChangeRequester() == nil {
		return actor.NewConfigurationError(name,
			"transition %s needs a manager to commit it", t)
	}

	d.queued = true

	m.RequestChange(actor.ChangeRequest{
		Kind:        actor.ChangeModeTransition,
		Source:      name,
		Target:      name,
		Description: fmt.Sprintf("%s: %s", name, t),
		Transition:  &transitionCommit{d: d, t: t},
		Discarded:   func() { d.queued = false },
	})

	return nil
}

// commit switches the mode. It runs between two iterations.
func (d *Director) commit(t Transition) error {
	d.queued = false

	if d.current.Name != t.From {
		d.logger.WithFields(logrus.Fields{
			"actor":      d.containerName(),
			"mode":       d.current.Name,
			"transition": t.String(),
		}).Warn("stale transition ignored")

		return nil
	}

	to := d.mode(t.To)
	outer := d.executive()

	outer.Cancel(d.container)
	d.current = to

	if t.Reset {
		delete(d.pending, to.Refinement)
		delete(d.finished, to.Refinement)

		if err := d.initRefinement(to.Refinement); err != nil {
			return err
		}
	} else if err := d.resume(to.Refinement); err != nil {
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"actor": d.containerName(),
		"time":  outer.ModelTime(),
		"from":  t.From,
		"mode":  t.To,
		"reset": t.Reset,
	}).Info("mode transition")

	d.invokeHook(HookPosModeTransition, t)

	return nil
}

// resume asks the outside to fire the modal model at every time the newly
// entered refinement asked for. Times already passed become the current
// time.
func (d *Director) resume(a actor.Actor) error {
	outer := d.executive()
	now := outer.ModelTime()

	times := append([]timing.Time(nil), d.pending[a]...)
	if c, ok := a.(*actor.Composite); ok {
		times = append(times, c.PeekTime())
	}

	requested := make(map[timing.Time]bool)

	for _, t := range times {
		if t.IsPositiveInfinity() {
			continue
		}

		if t.Before(now) {
			t = now
		}

		if requested[t] {
			continue
		}

		requested[t] = true

		if _, err := outer.FireAt(d.container, t); err != nil {
			return err
		}
	}

	return nil
}

// Wrapup wraps up every refinement, active or not.
func (d *Director) Wrapup() error {
	var errs []error

	for _, m := range d.modes {
		if err := m.Refinement.Wrapup(); err != nil {
			errs = append(errs,
				actor.WrapExecution(d.fullName(m.Refinement), "wrapup", err))
		}
	}

	return errors.Join(errs...)
}
