package timing

import (
	"log"
	"math/big"
)

// Period describes a periodic schedule: ticks at Phase, Phase+Interval,
// Phase+2*Interval and so on.
type Period struct {
	Interval Time
	Phase    Time
}

// EverySeconds creates a period with the given interval in seconds and zero
// phase, snapped to the resolution.
func EverySeconds(r Resolution, seconds float64) Period {
	return Period{Interval: r.FromSeconds(seconds)}
}

func (p Period) mustBeValid() {
	if p.Interval.IsInfinite() || !p.Interval.After(Zero) {
		log.Panicf("period interval must be positive and finite, got %s",
			p.Interval)
	}
}

func toBig(t Time) *big.Int {
	v := new(big.Int).Mul(big.NewInt(t.sec), big.NewInt(attoPerSecond))
	return v.Add(v, big.NewInt(t.atto))
}

func fromBig(v *big.Int) Time {
	sec, atto := new(big.Int).DivMod(v, big.NewInt(attoPerSecond),
		new(big.Int))
	if !sec.IsInt64() {
		if v.Sign() > 0 {
			return Infinity
		}

		return NegativeInfinity
	}

	return saturate(Time{sec: sec.Int64(), atto: atto.Int64()})
}

// Cycle returns how many whole intervals have elapsed between the phase and t.
// Times before the phase give negative cycle numbers.
func (p Period) Cycle(t Time) int64 {
	p.mustBeValid()

	if t.IsInfinite() {
		log.Panic("cannot compute the cycle of an infinite time")
	}

	diff := toBig(t.Sub(p.Phase))
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(diff, toBig(p.Interval), m)

	return q.Int64()
}

// ThisTick returns the tick at or right after t.
//
//	           Input
//	           (          ]
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (p Period) ThisTick(t Time) Time {
	p.mustBeValid()

	if t.IsInfinite() {
		return t
	}

	n := p.Cycle(t)
	tick := p.Phase.Add(p.Interval.Mul(n))

	if tick.Before(t) {
		tick = tick.Add(p.Interval)
	}

	return tick
}

// NextAfter returns the first tick strictly after t.
//
//	           Input
//	           [          )
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (p Period) NextAfter(t Time) Time {
	p.mustBeValid()

	if t.IsInfinite() {
		return t
	}

	n := p.Cycle(t)

	return p.Phase.Add(p.Interval.Mul(n + 1))
}

// NCyclesLater returns the time n ticks after the tick at or after t.
func (p Period) NCyclesLater(n int64, t Time) Time {
	return p.ThisTick(t).Add(p.Interval.Mul(n))
}
