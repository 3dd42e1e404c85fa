// Package decay maps time since the last interaction to a recency weight.
//
// The weight is exp(-Δdays / halfLifeDays): 1 right after an interaction,
// approaching (never reaching) 0 as the pair goes quiet. Every component with
// a notion of staleness asks the Calculator instead of doing its own math.
package decay

import (
	"math"
	"time"
)

// DefaultHalfLifeDays is the decay constant used when none is configured.
const DefaultHalfLifeDays = 7.0

const day = 24 * time.Hour

// Calculator computes recency weights. The zero value uses DefaultHalfLifeDays.
type Calculator struct {
	HalfLifeDays float64
}

// New returns a Calculator with the given half-life. Non-positive or NaN
// values fall back to DefaultHalfLifeDays.
func New(halfLifeDays float64) Calculator {
	if !(halfLifeDays > 0) || math.IsInf(halfLifeDays, 0) {
		halfLifeDays = DefaultHalfLifeDays
	}
	return Calculator{HalfLifeDays: halfLifeDays}
}

// Weight returns a value in (0,1]. A zero lastInteractionAt, or one after now,
// counts as no elapsed time.
func (c Calculator) Weight(lastInteractionAt, now time.Time) float64 {
	days := ElapsedDays(lastInteractionAt, now)
	w := math.Exp(-days / c.halfLife())
	if w <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return w
}

func (c Calculator) halfLife() float64 {
	if !(c.HalfLifeDays > 0) || math.IsInf(c.HalfLifeDays, 0) {
		return DefaultHalfLifeDays
	}
	return c.HalfLifeDays
}

// ElapsedDays returns fractional days from last to now, clamped at 0.
func ElapsedDays(last, now time.Time) float64 {
	if last.IsZero() || now.IsZero() || !now.After(last) {
		return 0
	}
	return float64(now.Sub(last)) / float64(day)
}
