package de

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
)

// Initialize resets the director and initializes every contained actor.
// Depths are computed here, so a zero-delay cycle fails the run before any
// actor runs.
func (d *Director) Initialize() error {
	d.state = Idle
	d.queue.Clear()
	d.finished = make(map[actor.Actor]bool)
	d.stop.Store(false)
	d.firing = false
	d.inIteration = false
	d.requestedOuter = timing.Infinity
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.microstep = 0
	d.modelTime = d.startTime

	if outer := d.executive(); outer != nil {
		d.modelTime = outer.ModelTime()
	}

	if wc, ok := d.clock.(*timing.WallClock); ok && !d.isEmbedded() {
		wc.Reset()
	}

	if err := actor.ComputeDepths(d.container); err != nil {
		return err
	}

	for _, child := range d.container.Children() {
		if _, ok := child.(*actor.Composite); ok {
			continue
		}

		for _, p := range child.Ports() {
			p.ClearReceivers()
		}
	}

	d.initializing = true
	defer func() { d.initializing = false }()

	for _, child := range d.container.Children() {
		if err := child.Initialize(); err != nil {
			return actor.WrapExecution(d.fullName(child), "initialize", err)
		}
	}

	d.logger.WithFields(logrus.Fields{
		"time":   d.modelTime,
		"events": d.queue.Len(),
	}).Debug("initialized")

	return nil
}

// Prefire brings an embedded director's time up to the time of the outer
// firing.
func (d *Director) Prefire() (bool, error) {
	if outer := d.executive(); outer != nil {
		now := outer.ModelTime()

		if now.After(d.modelTime) {
			d.modelTime = now
			d.microstep = 0
		}

		if !d.requestedOuter.After(now) {
			d.requestedOuter = timing.Infinity
		}

		d.inIteration = true
	}

	return !d.stop.Load(), nil
}

// Fire processes events. At the top level it advances time to the next
// event and dispatches everything at that time, microstep by microstep.
// Embedded, it dispatches everything up to the outer time and returns.
func (d *Director) Fire() error {
	if !d.isEmbedded() {
		tag, ok := d.queue.PeekTag()
		if !ok || tag.Time.After(d.stopTime) {
			return nil
		}

		if tag.Time.After(d.modelTime) {
			if d.syncRealTime {
				err := d.clock.WaitUntil(d.ctx, tag.Time)
				if errors.Is(err, context.Canceled) {
					return nil
				}

				if err != nil {
					return actor.WrapExecution(d.container.FullName(),
						"synchronize", err)
				}
			}

			d.modelTime = tag.Time
			d.microstep = tag.Microstep
		}
	}

	return d.processUpTo(d.modelTime)
}

func (d *Director) processUpTo(horizon timing.Time) error {
	defer func() { d.state = Idle }()

	for !d.stop.Load() {
		d.state = Selecting

		next, err := d.queue.Peek()
		if errors.Is(err, eventqueue.ErrEmptyQueue) || next.Time().After(horizon) {
			return nil
		}

		e, _ := d.queue.TakeSmallest()

		if e.Time().Before(d.modelTime) {
			d.logger.WithFields(logrus.Fields{
				"actor": d.fullName(e.Actor),
				"time":  e.Time(),
			}).Warn("dispatching a late event at the current time")
		}

		if e.Tag.Microstep > d.microstep {
			d.microstep = e.Tag.Microstep
		}

		if d.microstep > d.maxMicrosteps {
			return actor.NewConfigurationError(d.container.FullName(),
				"more than %d microsteps at time %s; the model has a "+
					"zero-delay loop", d.maxMicrosteps, d.modelTime)
		}

		batch := append([]eventqueue.Event{e}, d.queue.TakeBatch(e)...)

		if err := d.dispatch(batch); err != nil {
			d.logger.WithFields(logrus.Fields{
				"actor": d.fullName(e.Actor),
				"time":  d.modelTime,
			}).WithError(err).Error("firing failed")

			return err
		}
	}

	return nil
}

func (d *Director) dispatch(batch []eventqueue.Event) error {
	a := batch[0].Actor

	if d.finished[a] {
		return nil
	}

	if m := d.model(); m != nil && !m.Contains(a) {
		return nil
	}

	d.state = Transferring

	kept := 0
	now := d.clock.Now()

	for _, e := range batch {
		if !e.Deadline.IsInfinite() && d.gate != nil {
			drop, missed := d.gate.Check(e, now)
			if missed != nil {
				d.reportMiss(e, missed)
			}

			if drop {
				continue
			}
		}

		kept++

		if !e.IsDelivery() {
			continue
		}

		if err := put(e); err != nil {
			return actor.WrapExecution(d.fullName(a), "transfer",
				&actor.NoRoomError{Port: e.Port.FullName(), Err: err})
		}
	}

	if kept == 0 {
		return nil
	}

	return d.fire(a, batch)
}

// put moves the token of a delivery event into its receiver. Tagged
// mailboxes also get the event's tag, deadline and depth.
func put(e eventqueue.Event) error {
	mb, ok := e.Receiver.(*receiver.TaggedMailbox)
	if !ok {
		return e.Receiver.Put(e.Token)
	}

	relative := timing.Infinity
	if !e.Deadline.IsInfinite() {
		relative = e.Deadline.Sub(e.Tag.Time)
	}

	mb.PutTagged(e.Token, e.Tag, relative, e.Depth)

	return nil
}

func (d *Director) reportMiss(e eventqueue.Event, missed error) {
	d.logger.WithFields(logrus.Fields{
		"actor":    d.fullName(e.Actor),
		"time":     e.Time(),
		"deadline": e.Deadline,
	}).Warn(missed.Error())

	d.invokeHook(HookPosDeadlineMissed, e.Actor, missed)
}

func (d *Director) fire(a actor.Actor, batch []eventqueue.Event) error {
	name := d.fullName(a)

	d.state = Firing
	d.firing = true

	defer func() { d.firing = false }()

	d.invokeHook(HookPosBeforeFire, a, batch)

	ready, err := a.Prefire()
	if err != nil {
		return actor.WrapExecution(name, "prefire", err)
	}

	if !ready {
		return nil
	}

	if err := a.Fire(); err != nil {
		return actor.WrapExecution(name, "fire", err)
	}

	cont, err := a.Postfire()
	if err != nil {
		return actor.WrapExecution(name, "postfire", err)
	}

	if !cont {
		d.finished[a] = true
		d.queue.Cancel(a)

		d.logger.WithFields(logrus.Fields{
			"actor": name,
			"time":  d.modelTime,
		}).Debug("actor finished")
	}

	d.invokeHook(HookPosAfterFire, a, batch)

	return nil
}

// Postfire decides whether the run continues. At the top level it ends when
// no events are left, the next event is beyond the stop time, or Stop was
// called. Embedded, it asks the outer director to fire the container again
// at the next inner event.
func (d *Director) Postfire() (bool, error) {
	d.state = Idle

	if d.isEmbedded() {
		d.inIteration = false

		if err := d.requestOuterFiring(d.queue.PeekTime()); err != nil {
			return false, err
		}

		return !d.stop.Load(), nil
	}

	next := d.queue.PeekTime()

	if d.stop.Load() || next.IsPositiveInfinity() || next.After(d.stopTime) {
		d.state = Finished
		return false, nil
	}

	return true, nil
}

// Wrapup wraps up every contained actor. Every actor is wrapped up even if
// some fail; the errors are joined.
func (d *Director) Wrapup() error {
	var errs []error

	for _, child := range d.container.Children() {
		if err := child.Wrapup(); err != nil {
			errs = append(errs, actor.WrapExecution(d.fullName(child),
				"wrapup", err))
		}
	}

	d.state = Finished

	if d.cancel != nil {
		d.cancel()
	}

	return joinErrors(errs)
}
