package decay

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculator_Weight(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(7)

	tests := []struct {
		name string
		last time.Time
		want float64
	}{
		{name: "same instant", last: now, want: 1},
		{name: "zero timestamp clamps", last: time.Time{}, want: 1},
		{name: "future timestamp clamps", last: now.Add(48 * time.Hour), want: 1},
		{name: "one half-life", last: now.Add(-7 * day), want: math.Exp(-1)},
		{name: "three and a half days", last: now.Add(-84 * time.Hour), want: math.Exp(-0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, c.Weight(tt.last, now), 1e-12)
		})
	}
}

func TestCalculator_WeightStaysPositive(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w := New(0.01).Weight(now.AddDate(-50, 0, 0), now)
	assert.Greater(t, w, 0.0)
	assert.LessOrEqual(t, w, 1.0)
}

func TestCalculator_Monotonic(t *testing.T) {
	now := time.Now()
	c := Calculator{}
	prev := 1.0
	for d := 1; d <= 60; d++ {
		w := c.Weight(now.Add(-time.Duration(d)*day), now)
		assert.Less(t, w, prev, "day %d", d)
		prev = w
	}
}

func TestNew_InvalidHalfLifeFallsBack(t *testing.T) {
	assert.Equal(t, DefaultHalfLifeDays, New(0).HalfLifeDays)
	assert.Equal(t, DefaultHalfLifeDays, New(-3).HalfLifeDays)
	assert.Equal(t, DefaultHalfLifeDays, New(math.NaN()).HalfLifeDays)
	assert.Equal(t, 30.0, New(30).HalfLifeDays)
}
