// Package receiver provides the per-channel token buffers that sit behind
// input ports.
package receiver

import (
	"errors"

	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/token"
)

// ErrNoToken is returned by Get on a receiver that has nothing to read.
var ErrNoToken = errors.New("receiver: no token")

// ErrNoRoom is returned by Put on a bounded receiver that is full.
var ErrNoRoom = errors.New("receiver: no room")

// ErrTerminated is returned by blocking receivers after Terminate.
var ErrTerminated = errors.New("receiver: terminated")

// HookPosPut marks a token being stored in a receiver.
var HookPosPut = &hooking.HookPos{Name: "Receiver Put"}

// HookPosGet marks a token being read from a receiver.
var HookPosGet = &hooking.HookPos{Name: "Receiver Get"}

// A Receiver buffers tokens for one channel of one input port. Only the
// owning actor and the director delivering to it touch a receiver.
type Receiver interface {
	Put(t token.Token) error
	Get() (token.Token, error)
	HasToken() bool
	HasRoom() bool
	Size() int
	Clear()
}
