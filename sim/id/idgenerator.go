// Package id hands out identifiers for events, change requests and runs.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// Sequence is a Generator that counts up from 1. Within one run it produces
// deterministic identifiers, so two runs of the same model agree on them.
type Sequence struct {
	next uint64
}

// NewSequence creates a Sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Generate returns the next number in the sequence as a string.
func (s *Sequence) Generate() string {
	return strconv.FormatUint(s.Next(), 10)
}

// Next returns the next number in the sequence.
func (s *Sequence) Next() uint64 {
	return atomic.AddUint64(&s.next, 1)
}

// Reset starts the sequence over.
func (s *Sequence) Reset() {
	atomic.StoreUint64(&s.next, 0)
}

// NewRunID returns a globally unique, time-sortable identifier for a run.
func NewRunID() string {
	return xid.New().String()
}
