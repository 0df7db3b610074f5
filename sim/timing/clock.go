package timing

import (
	"context"
	"sync"
	"time"
)

// PlatformClock reports how much physical (platform) time has elapsed since
// a run started, expressed on the model time line. Real-time directors use it
// to detect missed deadlines and to pace execution.
type PlatformClock interface {
	// Now returns the elapsed platform time.
	Now() Time

	// WaitUntil blocks until the platform clock reaches t or ctx is done.
	WaitUntil(ctx context.Context, t Time) error
}

// WallClock is a PlatformClock backed by the operating system's monotonic
// clock.
type WallClock struct {
	start time.Time
}

// NewWallClock creates a WallClock that starts counting now.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Reset restarts the clock at zero.
func (c *WallClock) Reset() {
	c.start = time.Now()
}

// Now returns the time elapsed since the clock started.
func (c *WallClock) Now() Time {
	return FromNanoseconds(time.Since(c.start).Nanoseconds())
}

// WaitUntil sleeps until the elapsed time reaches t.
func (c *WallClock) WaitUntil(ctx context.Context, t Time) error {
	if t.IsPositiveInfinity() {
		<-ctx.Done()
		return ctx.Err()
	}

	d := time.Duration(t.Sub(c.Now()).Seconds() * float64(time.Second))
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManualClock is a PlatformClock that only moves when told to. Tests use it
// to put dispatches at exact platform times.
type ManualClock struct {
	lock sync.Mutex
	now  Time
}

// NewManualClock creates a ManualClock that reads zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current reading.
func (c *ManualClock) Now() Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

// Set moves the clock to t. A ManualClock may be moved backward.
func (c *ManualClock) Set(t Time) {
	c.lock.Lock()
	c.now = t
	c.lock.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d Time) {
	c.lock.Lock()
	c.now = c.now.Add(d)
	c.lock.Unlock()
}

// WaitUntil jumps the clock to t if t is in the future. It never blocks.
func (c *ManualClock) WaitUntil(ctx context.Context, t Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if t.After(c.now) && !t.IsInfinite() {
		c.now = t
	}

	return nil
}
