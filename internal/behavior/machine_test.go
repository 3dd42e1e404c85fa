package behavior

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMachine(opts ...MachineOption) *Machine {
	return NewMachine(append([]MachineOption{WithJitter(NoJitter{})}, opts...)...)
}

func TestMachine_ConsecutiveTriggersAdvancePhase(t *testing.T) {
	m := testMachine()
	p := DefaultProfile("c1", PossessiveAttachment)
	p.BaseIntensity, p.Intensity, p.EscalationRate = 0.2, 0.2, 0.1

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lastPhase := p.CurrentPhase
	for i := 0; i < 5; i++ {
		tx := m.ApplyTrigger(&p, Trigger{Magnitude: 1, Positive: true, At: now, Source: "msg"})
		assert.LessOrEqual(t, p.Intensity, 1.0)
		assert.GreaterOrEqual(t, tx.AfterPhase, lastPhase, "phase must not retreat on escalation")
		lastPhase = tx.AfterPhase
	}

	assert.InDelta(t, 0.7, p.Intensity, 1e-9)

	crossed := 0
	for _, bp := range DefaultBreakpoints {
		if p.Intensity >= bp {
			crossed++
		}
	}
	assert.Equal(t, crossed, p.CurrentPhase)
	assert.Equal(t, 2, p.CurrentPhase)
	assert.Len(t, p.Triggers, 5)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestMachine_IntensityClamped(t *testing.T) {
	m := testMachine()
	p := DefaultProfile("c1", JealousRivalry)
	p.EscalationRate = 0.5

	for i := 0; i < 10; i++ {
		m.ApplyTrigger(&p, Trigger{Magnitude: 1, Positive: true})
	}
	assert.Equal(t, 1.0, p.Intensity)
	assert.Equal(t, len(DefaultBreakpoints), p.CurrentPhase)

	p.DeEscalationRate = 0.9
	for i := 0; i < 5; i++ {
		m.ApplyTrigger(&p, Trigger{Magnitude: 1, Positive: false})
	}
	assert.Equal(t, 0.0, p.Intensity)
	assert.Equal(t, 0, p.CurrentPhase)
}

func TestMachine_MagnitudeSanitised(t *testing.T) {
	m := testMachine()

	tests := []struct {
		name      string
		magnitude float64
		want      float64
	}{
		{name: "nan is zero", magnitude: math.NaN(), want: 0.1},
		{name: "negative is zero", magnitude: -3, want: 0.1},
		{name: "above one clamps", magnitude: 7, want: 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile("c1", AnxiousAttachment)
			m.ApplyTrigger(&p, Trigger{Magnitude: tt.magnitude, Positive: true})
			assert.InDelta(t, tt.want, p.Intensity, 1e-9)
		})
	}
}

func TestMachine_PhaseFor_Hysteresis(t *testing.T) {
	m := testMachine()

	tests := []struct {
		name      string
		current   int
		intensity float64
		want      int
	}{
		{name: "below first breakpoint", current: 0, intensity: 0.2, want: 0},
		{name: "crossing two at once", current: 0, intensity: 0.6, want: 2},
		{name: "inside margin keeps phase", current: 2, intensity: 0.47, want: 2},
		{name: "below margin retreats", current: 2, intensity: 0.44, want: 1},
		{name: "fresh entry ignores margin", current: 0, intensity: 0.47, want: 1},
		{name: "full drop", current: 4, intensity: 0, want: 0},
		{name: "max", current: 0, intensity: 1, want: 4},
		{name: "out of range current", current: 9, intensity: 0.95, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.PhaseFor(tt.current, tt.intensity))
		})
	}
}

func TestMachine_ApplyIdleDecay(t *testing.T) {
	m := testMachine()

	tests := []struct {
		name   string
		weight float64
		want   float64
	}{
		{name: "no time passed", weight: 1, want: 0.8},
		{name: "half weight", weight: 0.5, want: 0.5},
		{name: "fully decayed", weight: 0, want: 0.2},
		{name: "nan leaves untouched", weight: math.NaN(), want: 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile("c1", MelancholicWithdrawal)
			p.BaseIntensity, p.Intensity = 0.2, 0.8
			p.CurrentPhase = m.PhaseFor(0, p.Intensity)

			m.ApplyIdleDecay(&p, tt.weight)
			assert.InDelta(t, tt.want, p.Intensity, 1e-9)
			assert.Equal(t, m.PhaseFor(p.CurrentPhase, p.Intensity), p.CurrentPhase)
		})
	}
}

func TestMachine_TriggerHistoryCapped(t *testing.T) {
	m := testMachine(WithMaxTriggers(3))
	p := DefaultProfile("c1", PlayfulTeasing)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m.ApplyTrigger(&p, Trigger{Magnitude: 0.1, Positive: true, At: base.Add(time.Duration(i) * time.Minute), Source: "hello"})
	}
	require.Len(t, p.Triggers, 3)
	assert.Equal(t, base.Add(2*time.Minute), p.Triggers[0].At)
	assert.Equal(t, base.Add(4*time.Minute), p.Triggers[2].At)
	assert.Equal(t, HashSource("hello"), p.Triggers[2].SourceHash)
	assert.Len(t, p.Triggers[2].SourceHash, 16)
}

func TestMachine_Reset(t *testing.T) {
	m := testMachine()
	p := DefaultProfile("c1", EmotionalDependency)
	p.EscalationRate = 0.5
	for i := 0; i < 3; i++ {
		m.ApplyTrigger(&p, Trigger{Magnitude: 1, Positive: true, Source: "x"})
	}
	require.NotZero(t, p.CurrentPhase)

	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	m.Reset(&p, at)
	assert.Equal(t, p.BaseIntensity, p.Intensity)
	assert.Equal(t, 0, p.CurrentPhase)
	assert.Empty(t, p.Triggers)
	assert.Equal(t, at, p.UpdatedAt)
}

func TestRandJitter_Bounds(t *testing.T) {
	j := RandJitter{}
	for i := 0; i < 1000; i++ {
		v := j.Jitter(0.4)
		assert.GreaterOrEqual(t, v, 0.8)
		assert.LessOrEqual(t, v, 1.2)
	}
}

func TestShouldDisplay(t *testing.T) {
	p := DefaultProfile("c1", ProtectiveCaretaking)
	p.ThresholdForDisplay = 0.5

	p.Intensity = 0.49
	assert.False(t, ShouldDisplay(p))
	p.Intensity = 0.5
	assert.True(t, ShouldDisplay(p))
}

func TestHashSource(t *testing.T) {
	assert.Empty(t, HashSource(""))
	assert.Equal(t, HashSource("same"), HashSource("same"))
	assert.NotEqual(t, HashSource("a"), HashSource("b"))
}
