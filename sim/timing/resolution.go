package timing

import (
	"fmt"
	"math"
)

// DefaultResolution is 1e-10 seconds, the finest increment models use unless
// configured otherwise.
var DefaultResolution = MustResolution(1e-10)

// Resolution is the minimum distinguishable increment of model time. Every
// time a director schedules is a whole number of resolution ticks.
type Resolution struct {
	atto int64
}

// NewResolution creates a resolution from a number of seconds. The value must
// be positive, no larger than one second, and must divide one second evenly
// once expressed in attoseconds.
func NewResolution(seconds float64) (Resolution, error) {
	if math.IsNaN(seconds) || seconds <= 0 || seconds > 1 {
		return Resolution{}, fmt.Errorf(
			"timing: resolution must be in (0, 1] seconds, got %g", seconds)
	}

	atto := int64(math.Round(seconds * float64(attoPerSecond)))
	if atto <= 0 || attoPerSecond%atto != 0 {
		return Resolution{}, fmt.Errorf(
			"timing: resolution %g does not divide one second evenly", seconds)
	}

	return Resolution{atto: atto}, nil
}

// MustResolution is like NewResolution but panics on an invalid value.
func MustResolution(seconds float64) Resolution {
	r, err := NewResolution(seconds)
	if err != nil {
		panic(err)
	}

	return r
}

// Tick returns the duration of a single resolution tick.
func (r Resolution) Tick() Time {
	return Time{atto: r.res()}
}

// Seconds returns the resolution in seconds.
func (r Resolution) Seconds() float64 {
	return float64(r.res()) / float64(attoPerSecond)
}

func (r Resolution) res() int64 {
	if r.atto == 0 {
		return DefaultResolution.atto
	}

	return r.atto
}

// Quantize rounds t to the nearest resolution tick. Ties round up.
func (r Resolution) Quantize(t Time) Time {
	if t.IsInfinite() {
		return t
	}

	res := r.res()
	rem := t.atto % res

	if rem*2 >= res {
		return New(t.sec, t.atto-rem+res)
	}

	return Time{sec: t.sec, atto: t.atto - rem}
}

// QuantizeUp rounds t up to the next resolution tick, leaving times that are
// already on the grid unchanged.
func (r Resolution) QuantizeUp(t Time) Time {
	if t.IsInfinite() {
		return t
	}

	res := r.res()
	rem := t.atto % res

	if rem == 0 {
		return t
	}

	return New(t.sec, t.atto-rem+res)
}

// FromSeconds converts seconds to a Time on this resolution's grid.
func (r Resolution) FromSeconds(s float64) Time {
	return r.Quantize(FromSeconds(s))
}

// Equal reports whether a and b fall on the same resolution tick.
func (r Resolution) Equal(a, b Time) bool {
	return r.Quantize(a).Equal(r.Quantize(b))
}

// Compare compares a and b after quantizing both to the grid.
func (r Resolution) Compare(a, b Time) int {
	return r.Quantize(a).Compare(r.Quantize(b))
}
