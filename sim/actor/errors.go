package actor

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every *ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ErrActorExecution is matched by every *ActorExecutionError.
var ErrActorExecution = errors.New("actor execution error")

// ConfigurationError reports a model that cannot run: a firing requested in
// the past, a zero-delay cycle, a malformed connection. It aborts the run.
type ConfigurationError struct {
	// Where names the actor, port or director the problem was found at.
	Where string
	Msg   string
	Err   error
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(where, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Where: where, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	s := "configuration error"
	if e.Where != "" {
		s += " at " + e.Where
	}

	s += ": " + e.Msg

	if e.Err != nil {
		s += ": " + e.Err.Error()
	}

	return s
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ActorExecutionError reports a failure inside an actor's life-cycle method.
// Directors stop the run when they see one; the firing is not retried.
type ActorExecutionError struct {
	Actor string
	Phase string
	Err   error
}

// WrapExecution wraps err raised by the named actor during phase. Errors that
// already are ActorExecutionErrors or ConfigurationErrors are returned as is.
func WrapExecution(actorName, phase string, err error) error {
	if err == nil {
		return nil
	}

	var ae *ActorExecutionError
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, ErrConfiguration) {
		return err
	}

	return &ActorExecutionError{Actor: actorName, Phase: phase, Err: err}
}

func (e *ActorExecutionError) Error() string {
	return fmt.Sprintf("actor %s failed in %s: %v", e.Actor, e.Phase, e.Err)
}

// Is makes errors.Is(err, ErrActorExecution) true.
func (e *ActorExecutionError) Is(target error) bool {
	return target == ErrActorExecution
}

func (e *ActorExecutionError) Unwrap() error {
	return e.Err
}

// NoTokenError is returned by Port.Get when the channel has nothing to read.
// It wraps receiver.ErrNoToken, or receiver.ErrTerminated for stopped
// process receivers.
type NoTokenError struct {
	Port    string
	Channel int
	Err     error
}

func (e *NoTokenError) Error() string {
	return fmt.Sprintf("no token at %s channel %d: %v", e.Port, e.Channel, e.Err)
}

func (e *NoTokenError) Unwrap() error {
	return e.Err
}

// NoRoomError is returned by Port.Send when the downstream receiver is full.
type NoRoomError struct {
	Port    string
	Channel int
	Err     error
}

func (e *NoRoomError) Error() string {
	return fmt.Sprintf("no room at %s channel %d: %v", e.Port, e.Channel, e.Err)
}

func (e *NoRoomError) Unwrap() error {
	return e.Err
}
