package receiver

import (
	"context"
	"log"
	"sync"

	"github.com/sarchlab/tempora/sim/token"
)

// Blocking is a bounded FIFO shared between two goroutines. Put blocks while
// full and Get blocks while empty. It is the only receiver that is safe for
// concurrent use.
type Blocking struct {
	lock       sync.Mutex
	cond       *sync.Cond
	capacity   int
	tokens     []token.Token
	terminated bool
	closed     bool
}

// NewBlocking creates a blocking receiver holding at most capacity tokens.
func NewBlocking(capacity int) *Blocking {
	if capacity <= 0 {
		log.Panic("blocking receiver capacity must be positive")
	}

	b := &Blocking{capacity: capacity}
	b.cond = sync.NewCond(&b.lock)

	return b
}

// Put waits for room and appends t.
func (b *Blocking) Put(t token.Token) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for !b.terminated && !b.closed && len(b.tokens) >= b.capacity {
		b.cond.Wait()
	}

	if b.terminated || b.closed {
		return ErrTerminated
	}

	b.tokens = append(b.tokens, t)
	b.cond.Broadcast()

	return nil
}

// Get waits for a token and removes it. A closed receiver hands out what it
// still holds before it reports ErrTerminated.
func (b *Blocking) Get() (token.Token, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for !b.terminated && !b.closed && len(b.tokens) == 0 {
		b.cond.Wait()
	}

	if b.terminated || len(b.tokens) == 0 {
		return token.Token{}, ErrTerminated
	}

	t := b.tokens[0]
	b.tokens = b.tokens[1:]
	b.cond.Broadcast()

	return t, nil
}

// TerminateOnDone terminates the receiver once ctx is done. It returns a
// function that releases the watcher.
func (b *Blocking) TerminateOnDone(ctx context.Context) (release func()) {
	stop := context.AfterFunc(ctx, b.Terminate)

	return func() { stop() }
}

// HasToken reports whether Get would return without waiting.
func (b *Blocking) HasToken() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.tokens) > 0
}

// HasRoom reports whether Put would return without waiting.
func (b *Blocking) HasRoom() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.tokens) < b.capacity
}

// Size returns the number of waiting tokens.
func (b *Blocking) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.tokens)
}

// Clear drops every waiting token and wakes blocked producers.
func (b *Blocking) Clear() {
	b.lock.Lock()
	b.tokens = nil
	b.cond.Broadcast()
	b.lock.Unlock()
}

// Terminate wakes every blocked caller. Subsequent calls to Put and Get
// return ErrTerminated.
func (b *Blocking) Terminate() {
	b.lock.Lock()
	b.terminated = true
	b.cond.Broadcast()
	b.lock.Unlock()
}

// Close tells the receiver that its producer is gone. Put fails from now on
// and Get fails once the waiting tokens are consumed.
func (b *Blocking) Close() {
	b.lock.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.lock.Unlock()
}

// Reset empties the receiver and reopens it for a new run.
func (b *Blocking) Reset() {
	b.lock.Lock()
	b.tokens = nil
	b.terminated = false
	b.closed = false
	b.cond.Broadcast()
	b.lock.Unlock()
}

// Terminated reports whether Terminate was called.
func (b *Blocking) Terminated() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.terminated
}
