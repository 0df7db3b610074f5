package timing

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

const attoPerSecond int64 = 1_000_000_000_000_000_000

// Time is a point on the model time line. It is stored as whole seconds plus
// attoseconds so that repeated additions of small periods do not drift.
// Time is a value type and is never mutated in place.
type Time struct {
	sec  int64
	atto int64
}

// Zero is the start of the model time line.
var Zero = Time{}

// Infinity is later than every finite time. It is used to mean "no event
// scheduled".
var Infinity = Time{sec: math.MaxInt64}

// NegativeInfinity is earlier than every finite time.
var NegativeInfinity = Time{sec: math.MinInt64}

// New creates a Time from seconds and attoseconds. The attosecond part may
// be out of range; it is carried into the seconds.
func New(sec, atto int64) Time {
	sec += atto / attoPerSecond
	atto %= attoPerSecond

	if atto < 0 {
		atto += attoPerSecond
		sec--
	}

	return saturate(Time{sec: sec, atto: atto})
}

// FromSeconds converts a floating point number of seconds into a Time.
// Precision is limited to what a float64 can hold; use Resolution.FromSeconds
// to snap the result onto the model's time grid.
func FromSeconds(s float64) Time {
	switch {
	case math.IsNaN(s):
		panic("timing: NaN is not a valid time")
	case math.IsInf(s, 1):
		return Infinity
	case math.IsInf(s, -1):
		return NegativeInfinity
	case s >= math.MaxInt64:
		return Infinity
	case s <= math.MinInt64:
		return NegativeInfinity
	}

	whole := math.Floor(s)
	frac := math.Round((s - whole) * float64(attoPerSecond))

	return New(int64(whole), int64(frac))
}

// FromNanoseconds creates a Time from an integer number of nanoseconds.
func FromNanoseconds(ns int64) Time {
	return New(ns/1e9, (ns%1e9)*1e9)
}

func saturate(t Time) Time {
	if t.sec == math.MaxInt64 {
		return Infinity
	}

	if t.sec == math.MinInt64 {
		return NegativeInfinity
	}

	return t
}

// IsInfinite returns true for both Infinity and NegativeInfinity.
func (t Time) IsInfinite() bool {
	return t.sec == math.MaxInt64 || t.sec == math.MinInt64
}

// IsPositiveInfinity returns true if t is Infinity.
func (t Time) IsPositiveInfinity() bool {
	return t.sec == math.MaxInt64
}

// Add returns t + d. The result saturates at the infinities instead of
// wrapping around.
func (t Time) Add(d Time) Time {
	if t.IsInfinite() {
		return t
	}

	if d.IsInfinite() {
		return d
	}

	atto := t.atto + d.atto
	carry := int64(0)

	if atto >= attoPerSecond {
		atto -= attoPerSecond
		carry = 1
	}

	sec, overflow := addInt64(t.sec, d.sec)
	if !overflow {
		sec, overflow = addInt64(sec, carry)
	}

	if overflow {
		if d.sec > 0 {
			return Infinity
		}

		return NegativeInfinity
	}

	return saturate(Time{sec: sec, atto: atto})
}

// Sub returns t - d, saturating at the infinities.
func (t Time) Sub(d Time) Time {
	if t.IsInfinite() {
		return t
	}

	return t.Add(d.Neg())
}

// Neg returns -t.
func (t Time) Neg() Time {
	switch {
	case t.sec == math.MaxInt64:
		return NegativeInfinity
	case t.sec == math.MinInt64:
		return Infinity
	case t.atto == 0:
		return Time{sec: -t.sec}
	default:
		return Time{sec: -t.sec - 1, atto: attoPerSecond - t.atto}
	}
}

// Mul returns t multiplied by n, saturating at the infinities.
func (t Time) Mul(n int64) Time {
	if t.IsInfinite() {
		if n < 0 {
			return t.Neg()
		}

		return t
	}

	total := new(big.Int).Mul(big.NewInt(t.sec), big.NewInt(attoPerSecond))
	total.Add(total, big.NewInt(t.atto))
	total.Mul(total, big.NewInt(n))

	sec, atto := new(big.Int).DivMod(total, big.NewInt(attoPerSecond),
		new(big.Int))

	if !sec.IsInt64() || sec.Int64() == math.MaxInt64 ||
		sec.Int64() == math.MinInt64 {
		if total.Sign() > 0 {
			return Infinity
		}

		return NegativeInfinity
	}

	return Time{sec: sec.Int64(), atto: atto.Int64()}
}

// Compare returns -1, 0 or 1 if t is earlier than, equal to, or later than u.
func (t Time) Compare(u Time) int {
	switch {
	case t.sec < u.sec:
		return -1
	case t.sec > u.sec:
		return 1
	case t.atto < u.atto:
		return -1
	case t.atto > u.atto:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is earlier than u.
func (t Time) Before(u Time) bool {
	return t.Compare(u) < 0
}

// After reports whether t is later than u.
func (t Time) After(u Time) bool {
	return t.Compare(u) > 0
}

// Equal reports whether t and u are exactly the same instant.
func (t Time) Equal(u Time) bool {
	return t.Compare(u) == 0
}

// Seconds converts t to a float64 number of seconds.
func (t Time) Seconds() float64 {
	switch {
	case t.sec == math.MaxInt64:
		return math.Inf(1)
	case t.sec == math.MinInt64:
		return math.Inf(-1)
	}

	return float64(t.sec) + float64(t.atto)/float64(attoPerSecond)
}

// Parts returns the whole seconds and the attosecond remainder.
func (t Time) Parts() (sec, atto int64) {
	return t.sec, t.atto
}

// String prints the exact decimal value of t in seconds.
func (t Time) String() string {
	switch {
	case t.sec == math.MaxInt64:
		return "+Inf"
	case t.sec == math.MinInt64:
		return "-Inf"
	}

	if t.sec < 0 {
		return "-" + t.Neg().String()
	}

	if t.atto == 0 {
		return strconv.FormatInt(t.sec, 10)
	}

	frac := strings.TrimRight(fmt.Sprintf("%018d", t.atto), "0")

	return strconv.FormatInt(t.sec, 10) + "." + frac
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) == (b > 0) {
		return c, false
	}

	return c, true
}

// Min returns the earlier of the two times.
func Min(a, b Time) Time {
	if a.Before(b) {
		return a
	}

	return b
}
