package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/tempora/sim/id"
)

// A ProgressBar tracks how much of some work is done.
type ProgressBar struct {
	lock       sync.Mutex
	id         string
	name       string
	startTime  time.Time
	total      uint64
	finished   uint64
	inProgress uint64
}

// ProgressSnapshot is the state of a bar at one moment.
type ProgressSnapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// NewProgressBar creates a bar that starts now.
func NewProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		id:        id.NewRunID(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}
}

// IncrementInProgress adds to the in-progress amount.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.inProgress += amount
}

// IncrementFinished adds to the finished amount.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.finished += amount
}

// SetFinished sets the finished amount.
func (b *ProgressBar) SetFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.finished = amount
}

// MoveInProgressToFinished moves amount from in progress to finished.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.inProgress -= amount
	b.finished += amount
}

// Snapshot returns the current state.
func (b *ProgressBar) Snapshot() ProgressSnapshot {
	b.lock.Lock()
	defer b.lock.Unlock()

	return ProgressSnapshot{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.startTime,
		Total:      b.total,
		Finished:   b.finished,
		InProgress: b.inProgress,
	}
}
