// Package process implements the process-oriented director. Every actor of
// the composite runs in its own goroutine and actors talk only through
// bounded blocking receivers. There is no model time.
package process

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/receiver"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// HookPosBeforeFire is invoked, from the actor's goroutine, before each
// firing. The item is the actor. Hooks must be safe for concurrent use.
var HookPosBeforeFire = &hooking.HookPos{Name: "Process Before Fire"}

// HookPosProcessEnd is invoked when the goroutine of an actor exits. The
// item is the actor and the detail is the error that ended it, if any.
var HookPosProcessEnd = &hooking.HookPos{Name: "Process End"}

// Director runs each child of its composite as an independent process.
type Director struct {
	hooking.HookableBase

	name      string
	container *actor.Composite
	logger    logrus.FieldLogger
	capacity  int

	ctx       context.Context
	stop      atomic.Bool
	lock      sync.Mutex
	receivers []*receiver.Blocking
	firstErr  error
	firings   atomic.Int64
}

// Builder builds process directors.
type Builder struct {
	logger   logrus.FieldLogger
	capacity int
}

// MakeBuilder returns a builder whose receivers hold 16 tokens unless the
// port says otherwise.
func MakeBuilder() Builder {
	return Builder{
		logger:   logrus.StandardLogger(),
		capacity: 16,
	}
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithDefaultCapacity sets the capacity of receivers behind ports that do
// not declare one.
func (b Builder) WithDefaultCapacity(n int) Builder {
	b.capacity = n
	return b
}

// Build creates the director.
func (b Builder) Build(name string) *Director {
	return &Director{
		name:     name,
		logger:   b.logger,
		capacity: b.capacity,
		ctx:      context.Background(),
	}
}

// Name returns the name of the director.
func (d *Director) Name() string {
	return d.name
}

// SetContainer is called by the composite the director is given to.
func (d *Director) SetContainer(c *actor.Composite) {
	d.container = c
}

// Container returns the composite the director runs.
func (d *Director) Container() *actor.Composite {
	return d.container
}

// Firings returns how many times actors were fired in the current run.
func (d *Director) Firings() int64 {
	return d.firings.Load()
}

// ModelTime is always zero.
func (d *Director) ModelTime() timing.Time {
	return timing.Zero
}

// Microstep is always zero.
func (d *Director) Microstep() int {
	return 0
}

// FireAt is accepted and ignored. Processes fire whenever their inputs
// allow.
func (d *Director) FireAt(_ actor.Actor, t timing.Time) (timing.Time, error) {
	return t, nil
}

// Schedule is accepted and ignored.
func (d *Director) Schedule(req actor.FireRequest) (timing.Tag, error) {
	return timing.Tag{Time: req.Time, Microstep: req.Microstep}, nil
}

// Cancel does nothing.
func (d *Director) Cancel(actor.Actor) {}

// NewReceiver creates a blocking receiver. Receiver hints are ignored.
func (d *Director) NewReceiver(p *actor.Port) receiver.Receiver {
	capacity := p.Capacity()
	if capacity == 0 {
		capacity = d.capacity
	}

	r := receiver.NewBlocking(capacity)

	d.lock.Lock()
	d.receivers = append(d.receivers, r)
	d.lock.Unlock()

	return r
}

// Deliver puts tok into r, waiting for room.
func (d *Director) Deliver(
	r receiver.Receiver,
	_ *actor.Port,
	tok token.Token,
) error {
	return r.Put(tok)
}

// Run executes the composite once: it initializes every actor, runs all of
// them until they finish, fail or are stopped, and wraps them up.
// Cancelling ctx stops the run.
func (d *Director) Run(ctx context.Context) error {
	d.ctx = ctx
	defer func() { d.ctx = context.Background() }()

	if err := d.container.Initialize(); err != nil {
		return errors.Join(err, d.container.Wrapup())
	}

	var runErr error

	ready, err := d.container.Prefire()
	if err == nil && ready {
		err = d.container.Fire()
	}

	if err != nil {
		runErr = err
	} else if _, err := d.container.Postfire(); err != nil {
		runErr = err
	}

	return errors.Join(runErr, d.container.Wrapup())
}

// Initialize reopens the receivers and initializes every actor.
func (d *Director) Initialize() error {
	if d.container.ExecutiveDirector() != nil {
		return actor.NewConfigurationError(d.container.FullName(),
			"a process director must run the top-level composite")
	}

	d.stop.Store(false)
	d.firstErr = nil
	d.firings.Store(0)

	d.lock.Lock()
	for _, r := range d.receivers {
		r.Reset()
	}
	d.lock.Unlock()

	for _, a := range d.container.Children() {
		if err := a.Initialize(); err != nil {
			return actor.WrapExecution(d.fullName(a), "initialize", err)
		}
	}

	return nil
}

// Prefire reports whether the run was stopped before it started.
func (d *Director) Prefire() (bool, error) {
	return !d.stop.Load(), nil
}

// Fire starts one goroutine per actor and waits until every one of them
// has ended. The first actor error stops the others and is returned.
func (d *Director) Fire() error {
	release := context.AfterFunc(d.ctx, d.Stop)
	defer release()

	var wg sync.WaitGroup

	for _, a := range d.container.Children() {
		wg.Add(1)

		go func(a actor.Actor) {
			defer wg.Done()
			d.runProcess(a)
		}(a)
	}

	wg.Wait()

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.firstErr
}

func (d *Director) runProcess(a actor.Actor) {
	err := d.iterate(a)

	if errors.Is(err, receiver.ErrTerminated) {
		err = nil
	}

	d.closeOutputs(a)
	d.terminateInputs(a)

	if err != nil {
		d.fail(a, err)
	}

	d.logger.WithFields(logrus.Fields{
		"actor": d.fullName(a),
	}).Debug("process ended")

	d.invokeHook(HookPosProcessEnd, a, err)
}

func (d *Director) iterate(a actor.Actor) error {
	for !d.stop.Load() {
		ready, err := a.Prefire()
		if err != nil {
			return actor.WrapExecution(d.fullName(a), "prefire", err)
		}

		if !ready {
			return nil
		}

		d.invokeHook(HookPosBeforeFire, a, nil)
		d.firings.Add(1)

		if err := a.Fire(); err != nil {
			if errors.Is(err, receiver.ErrTerminated) {
				return err
			}

			return actor.WrapExecution(d.fullName(a), "fire", err)
		}

		cont, err := a.Postfire()
		if err != nil {
			return actor.WrapExecution(d.fullName(a), "postfire", err)
		}

		if !cont {
			return nil
		}
	}

	return nil
}

// closeOutputs lets the consumers of a drain what a produced and then see
// that nothing more is coming.
func (d *Director) closeOutputs(a actor.Actor) {
	for _, p := range a.Ports() {
		if !p.IsOutput() {
			continue
		}

		for _, r := range p.LinkReceivers() {
			if b, ok := r.(*receiver.Blocking); ok {
				b.Close()
			}
		}
	}
}

// terminateInputs releases the producers blocked on the inputs of a.
func (d *Director) terminateInputs(a actor.Actor) {
	for _, p := range a.Ports() {
		if !p.IsInput() {
			continue
		}

		for _, r := range p.Receivers() {
			if b, ok := r.(*receiver.Blocking); ok {
				b.Terminate()
			}
		}
	}
}

func (d *Director) fail(a actor.Actor, err error) {
	d.lock.Lock()
	first := d.firstErr == nil
	if first {
		d.firstErr = err
	}
	d.lock.Unlock()

	d.logger.WithFields(logrus.Fields{
		"actor": d.fullName(a),
	}).WithError(err).Error("process failed")

	if first {
		d.Stop()
	}
}

// Postfire ends the run of the composite. A process network runs once.
func (d *Director) Postfire() (bool, error) {
	return false, nil
}

// Wrapup wraps up every actor. It is only called after every goroutine has
// returned.
func (d *Director) Wrapup() error {
	var errs []error

	for _, a := range d.container.Children() {
		if err := a.Wrapup(); err != nil {
			errs = append(errs, actor.WrapExecution(d.fullName(a), "wrapup", err))
		}
	}

	return errors.Join(errs...)
}

// NextEventTime is infinite. Processes do not ask to be fired.
func (d *Director) NextEventTime() timing.Time {
	return timing.Infinity
}

// TransferInputs moves tokens at the composite's input port p inside.
func (d *Director) TransferInputs(p *actor.Port) (bool, error) {
	return d.transfer(p)
}

// TransferOutputs moves tokens at the composite's output port p outside.
func (d *Director) TransferOutputs(p *actor.Port) (bool, error) {
	return d.transfer(p)
}

func (d *Director) transfer(p *actor.Port) (bool, error) {
	moved := false

	for _, r := range p.Receivers() {
		m, err := actor.Drain(r, p.Broadcast)
		moved = moved || m

		if err != nil {
			return moved, err
		}
	}

	return moved, nil
}

// Stop ends every process after its in-flight firing. Actors blocked on a
// receiver are released.
func (d *Director) Stop() {
	d.stop.Store(true)

	d.lock.Lock()
	defer d.lock.Unlock()

	for _, r := range d.receivers {
		r.Terminate()
	}
}

func (d *Director) fullName(a actor.Actor) string {
	if m := d.container.Model(); m != nil {
		return m.FullName(a)
	}

	return a.Name()
}

func (d *Director) invokeHook(pos *hooking.HookPos, item, detail any) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
