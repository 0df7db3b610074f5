package receiver

import (
	"log"

	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/token"
)

// FIFO is a first-in first-out receiver. A capacity of zero means unbounded.
type FIFO struct {
	hooking.HookableBase

	capacity int
	tokens   []token.Token
}

// FIFOBuilder builds FIFO receivers.
type FIFOBuilder struct {
	capacity int
}

// MakeFIFOBuilder returns a builder for unbounded FIFOs.
func MakeFIFOBuilder() FIFOBuilder {
	return FIFOBuilder{}
}

// WithCapacity bounds the FIFO. Zero means unbounded.
func (b FIFOBuilder) WithCapacity(capacity int) FIFOBuilder {
	b.capacity = capacity
	return b
}

// Build creates the FIFO.
func (b FIFOBuilder) Build() *FIFO {
	if b.capacity < 0 {
		log.Panic("FIFO capacity cannot be negative")
	}

	return &FIFO{capacity: b.capacity}
}

// NewFIFO creates an unbounded FIFO.
func NewFIFO() *FIFO {
	return MakeFIFOBuilder().Build()
}

// Capacity returns the bound, or zero if unbounded.
func (f *FIFO) Capacity() int {
	return f.capacity
}

// HasRoom reports whether Put would succeed.
func (f *FIFO) HasRoom() bool {
	return f.capacity == 0 || len(f.tokens) < f.capacity
}

// Put appends a token.
func (f *FIFO) Put(t token.Token) error {
	if !f.HasRoom() {
		return ErrNoRoom
	}

	f.tokens = append(f.tokens, t)

	if f.NumHooks() > 0 {
		f.InvokeHook(hooking.HookCtx{Domain: f, Pos: HookPosPut, Item: t})
	}

	return nil
}

// Get removes and returns the oldest token.
func (f *FIFO) Get() (token.Token, error) {
	if len(f.tokens) == 0 {
		return token.Token{}, ErrNoToken
	}

	t := f.tokens[0]
	f.tokens[0] = token.Token{}
	f.tokens = f.tokens[1:]

	if f.NumHooks() > 0 {
		f.InvokeHook(hooking.HookCtx{Domain: f, Pos: HookPosGet, Item: t})
	}

	return t, nil
}

// Peek returns the oldest token without removing it.
func (f *FIFO) Peek() (token.Token, error) {
	if len(f.tokens) == 0 {
		return token.Token{}, ErrNoToken
	}

	return f.tokens[0], nil
}

// HasToken reports whether a token is waiting.
func (f *FIFO) HasToken() bool {
	return len(f.tokens) > 0
}

// Size returns the number of waiting tokens.
func (f *FIFO) Size() int {
	return len(f.tokens)
}

// Clear drops every waiting token.
func (f *FIFO) Clear() {
	f.tokens = nil
}
