// Package manager runs a model. It drives iterations of the top-level
// composite and executes queued change requests strictly between two
// iterations.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/id"
)

// HookPosBeforeIteration is invoked before each iteration. The item is the
// iteration number.
var HookPosBeforeIteration = &hooking.HookPos{Name: "Manager Before Iteration"}

// HookPosAfterIteration is invoked after each iteration, once its changes
// are executed. The item is the iteration number.
var HookPosAfterIteration = &hooking.HookPos{Name: "Manager After Iteration"}

// HookPosChangeExecuted is invoked after a change request ran. The item is
// the request and the detail is the error it returned, if any.
var HookPosChangeExecuted = &hooking.HookPos{Name: "Manager Change Executed"}

// HookPosChangeDiscarded is invoked when a change request is dropped without
// running. The item is the request.
var HookPosChangeDiscarded = &hooking.HookPos{Name: "Manager Change Discarded"}

// State is what the manager is doing.
type State int32

// Manager states.
const (
	Idle State = iota
	Initializing
	Iterating
	ExecutingChanges
	WrappingUp
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case ExecutingChanges:
		return "executing changes"
	case WrappingUp:
		return "wrapping up"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// A ChangeListener is told about every change request that runs.
type ChangeListener interface {
	ChangeExecuted(req actor.ChangeRequest)
	ChangeFailed(req actor.ChangeRequest, err error)
}

// Manager executes a model.
type Manager struct {
	hooking.HookableBase

	model  *actor.Model
	top    *actor.Composite
	logger logrus.FieldLogger
	ids    id.Generator
	runID  string

	changeLock sync.Mutex
	changes    []actor.ChangeRequest
	executed   map[string]bool
	listeners  []ChangeListener

	state     atomic.Int32
	iteration atomic.Int64
	stop      atomic.Bool

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// Builder builds managers.
type Builder struct {
	logger logrus.FieldLogger
	ids    id.Generator
}

// MakeBuilder returns a builder with the standard logger and a sequence of
// request IDs.
func MakeBuilder() Builder {
	return Builder{logger: logrus.StandardLogger()}
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithIDGenerator sets how change requests without an ID get one.
func (b Builder) WithIDGenerator(g id.Generator) Builder {
	b.ids = g
	return b
}

// Build creates a manager for the model and makes it the model's change
// requester.
func (b Builder) Build(m *actor.Model) *Manager {
	ids := b.ids
	if ids == nil {
		ids = id.NewSequence()
	}

	mgr := &Manager{
		model:    m,
		top:      m.TopLevel(),
		logger:   b.logger,
		ids:      ids,
		executed: make(map[string]bool),
	}

	m.SetChangeRequester(mgr)

	return mgr
}

// Model returns the model being run.
func (m *Manager) Model() *actor.Model {
	return m.model
}

// RunID identifies the current or last run.
func (m *Manager) RunID() string {
	return m.runID
}

// State returns what the manager is doing.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Iteration returns the number of iterations started in this run.
func (m *Manager) Iteration() int64 {
	return m.iteration.Load()
}

// AddChangeListener registers a listener.
func (m *Manager) AddChangeListener(l ChangeListener) {
	m.listeners = append(m.listeners, l)
}

// RequestChange queues a change request. It is safe to call from any
// goroutine. The request runs after the current iteration.
func (m *Manager) RequestChange(req actor.ChangeRequest) {
	m.changeLock.Lock()
	defer m.changeLock.Unlock()

	if req.ID == "" {
		req.ID = m.ids.Generate()
	}

	m.changes = append(m.changes, req)

	m.logger.WithFields(logrus.Fields{
		"request": req.ID,
		"kind":    req.Kind.String(),
		"source":  req.Source,
	}).Debug(req.Description)
}

// PendingChanges returns the number of queued change requests.
func (m *Manager) PendingChanges() int {
	m.changeLock.Lock()
	defer m.changeLock.Unlock()

	return len(m.changes)
}

// Run initializes the model, iterates it until it is done, is stopped or
// fails, and wraps it up. Every actor is wrapped up exactly once, whatever
// happened before. Cancelling ctx stops the run like Stop.
func (m *Manager) Run(ctx context.Context) error {
	m.singleRunLock.Lock()
	defer m.singleRunLock.Unlock()

	runErr := m.Initialize()

	stopOnCancel := context.AfterFunc(ctx, m.Stop)
	defer stopOnCancel()

	for runErr == nil && !m.stop.Load() && ctx.Err() == nil {
		m.pauseLock.Lock()
		cont, err := m.Iterate()
		m.pauseLock.Unlock()

		if err != nil {
			runErr = err
			break
		}

		if !cont {
			break
		}
	}

	wrapErr := m.Wrapup()

	if runErr != nil {
		m.logger.WithFields(logrus.Fields{
			"run":       m.runID,
			"iteration": m.Iteration(),
		}).WithError(runErr).Error("run failed")
	}

	return errors.Join(runErr, wrapErr)
}

// Initialize starts a run.
func (m *Manager) Initialize() error {
	m.setState(Initializing)
	m.runID = id.NewRunID()
	m.iteration.Store(0)
	m.stop.Store(false)
	m.executed = make(map[string]bool)

	m.logger.WithField("run", m.runID).Info("initializing model")

	return m.top.Initialize()
}

// Iterate runs one iteration of the top-level composite and then executes
// the change requests queued during it. It reports whether the model wants
// to continue.
func (m *Manager) Iterate() (bool, error) {
	n := m.iteration.Add(1)
	m.setState(Iterating)
	m.invokeHook(HookPosBeforeIteration, n, nil)

	ready, err := m.top.Prefire()
	if err != nil {
		return false, err
	}

	if ready {
		if err := m.top.Fire(); err != nil {
			return false, err
		}
	}

	cont, err := m.top.Postfire()
	if err != nil {
		return false, err
	}

	committed, err := m.executeChanges()
	if err != nil {
		return false, err
	}

	m.invokeHook(HookPosAfterIteration, n, nil)

	if !cont && committed > 0 && !m.stop.Load() &&
		!m.top.PeekTime().IsPositiveInfinity() {
		cont = true
	}

	return cont, nil
}

// Wrapup ends the run. Requests still queued are discarded.
func (m *Manager) Wrapup() error {
	m.setState(WrappingUp)

	m.changeLock.Lock()
	left := m.changes
	m.changes = nil
	m.changeLock.Unlock()

	for _, req := range left {
		m.discard(req, "the run ended")
	}

	err := m.top.Wrapup()

	m.setState(Finished)
	m.logger.WithFields(logrus.Fields{
		"run":        m.runID,
		"iterations": m.Iteration(),
	}).Info("run finished")

	return err
}

// Stop ends the run after the current iteration. A paused run is resumed so
// that it can end.
func (m *Manager) Stop() {
	m.stop.Store(true)
	m.top.Stop()
	m.Continue()
}

// Pause blocks the run before its next iteration.
func (m *Manager) Pause() {
	m.isPausedLock.Lock()
	defer m.isPausedLock.Unlock()

	if m.isPaused {
		return
	}

	m.pauseLock.Lock()
	m.isPaused = true
}

// Continue lets a paused run go on.
func (m *Manager) Continue() {
	m.isPausedLock.Lock()
	defer m.isPausedLock.Unlock()

	if !m.isPaused {
		return
	}

	m.pauseLock.Unlock()
	m.isPaused = false
}

// IsPaused reports whether the run is paused.
func (m *Manager) IsPaused() bool {
	m.isPausedLock.Lock()
	defer m.isPausedLock.Unlock()

	return m.isPaused
}

func (m *Manager) executeChanges() (int, error) {
	m.changeLock.Lock()
	reqs := m.changes
	m.changes = nil
	m.changeLock.Unlock()

	if len(reqs) == 0 {
		return 0, nil
	}

	m.setState(ExecutingChanges)

	keys := make(map[string]bool)
	targets := make(map[string]bool)
	n := 0

	for i, req := range reqs {
		if m.executed[req.ID] {
			continue
		}

		if req.Key != "" && keys[req.Key] {
			m.discard(req, "a request with the same key ran")
			continue
		}

		if req.Kind == actor.ChangeModeTransition && targets[req.Target] {
			m.discard(req, "another transition of the target ran")
			continue
		}

		err := m.execute(req)
		m.executed[req.ID] = true
		m.invokeHook(HookPosChangeExecuted, req, err)

		if err != nil {
			for _, l := range m.listeners {
				l.ChangeFailed(req, err)
			}

			for _, rest := range reqs[i+1:] {
				m.discard(rest, "an earlier request failed")
			}

			return n, fmt.Errorf("change request %s (%s): %w",
				req.ID, req.Description, err)
		}

		for _, l := range m.listeners {
			l.ChangeExecuted(req)
		}

		if req.Key != "" {
			keys[req.Key] = true
		}

		if req.Kind == actor.ChangeModeTransition {
			targets[req.Target] = true
		}

		n++
	}

	return n, nil
}

func (m *Manager) execute(req actor.ChangeRequest) error {
	m.logger.WithFields(logrus.Fields{
		"request":   req.ID,
		"kind":      req.Kind.String(),
		"iteration": m.Iteration(),
	}).Debug("executing change request")

	switch req.Kind {
	case actor.ChangeMutation:
		if req.Mutate == nil {
			return actor.NewConfigurationError(req.Source,
				"mutation %s has nothing to run", req.ID)
		}

		return req.Mutate()
	case actor.ChangeModeTransition:
		if req.Transition == nil {
			return actor.NewConfigurationError(req.Source,
				"transition %s has nothing to commit", req.ID)
		}

		return req.Transition.Commit()
	case actor.ChangeRemoveActor:
		c := m.model.Container(req.Actor)
		if c == nil {
			return actor.NewConfigurationError(req.Source,
				"cannot remove an actor that is not in the model")
		}

		return c.RemoveActor(req.Actor)
	default:
		return actor.NewConfigurationError(req.Source,
			"unknown change kind %d", req.Kind)
	}
}

func (m *Manager) discard(req actor.ChangeRequest, why string) {
	m.logger.WithFields(logrus.Fields{
		"request": req.ID,
		"kind":    req.Kind.String(),
		"target":  req.Target,
	}).Warnf("change request dropped: %s", why)

	m.invokeHook(HookPosChangeDiscarded, req, why)

	if req.Discarded != nil {
		req.Discarded()
	}
}

func (m *Manager) invokeHook(pos *hooking.HookPos, item, detail any) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
