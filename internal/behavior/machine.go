package behavior

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"math/rand/v2"
	"time"
)

// DefaultBreakpoints are the intensity levels that advance the phase.
var DefaultBreakpoints = []float64{0.25, 0.5, 0.75, 0.9}

const (
	// DefaultHysteresis is how far below a crossed breakpoint intensity must
	// fall before the phase retreats.
	DefaultHysteresis = 0.05

	// DefaultMaxTriggers caps the per-profile trigger history.
	DefaultMaxTriggers = 50

	sourceHashLen = 16
)

// JitterSource produces the multiplicative noise applied to escalation.
type JitterSource interface {
	// Jitter returns a factor around 1 whose spread is the volatility.
	Jitter(volatility float64) float64
}

// NoJitter always returns 1. Tests use it for deterministic arithmetic.
type NoJitter struct{}

// Jitter implements JitterSource.
func (NoJitter) Jitter(float64) float64 { return 1 }

// RandJitter draws 1 + volatility*u with u uniform in [-0.5, 0.5].
type RandJitter struct{}

// Jitter implements JitterSource.
func (RandJitter) Jitter(volatility float64) float64 {
	return 1 + volatility*(rand.Float64()-0.5)
}

// Trigger is one stimulus applied to a profile. Positive triggers escalate
// the behavior; negative ones calm it.
type Trigger struct {
	Magnitude float64
	Positive  bool
	At        time.Time
	Source    string
}

// Transition summarises what ApplyTrigger or ApplyIdleDecay changed.
type Transition struct {
	Type            Type
	BeforeIntensity float64
	AfterIntensity  float64
	BeforePhase     int
	AfterPhase      int
}

// PhaseChanged reports whether the transition moved the phase.
func (t Transition) PhaseChanged() bool { return t.BeforePhase != t.AfterPhase }

// Machine applies triggers and idle decay to profiles. The zero value is not
// usable; build one with NewMachine.
type Machine struct {
	breakpoints []float64
	hysteresis  float64
	maxTriggers int
	jitter      JitterSource
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithBreakpoints overrides the ascending phase breakpoints.
func WithBreakpoints(bp []float64) MachineOption {
	return func(m *Machine) {
		if len(bp) > 0 {
			m.breakpoints = append([]float64(nil), bp...)
		}
	}
}

// WithHysteresis overrides the phase retreat margin.
func WithHysteresis(margin float64) MachineOption {
	return func(m *Machine) {
		if margin >= 0 {
			m.hysteresis = margin
		}
	}
}

// WithMaxTriggers overrides the trigger history cap.
func WithMaxTriggers(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.maxTriggers = n
		}
	}
}

// WithJitter overrides the jitter source.
func WithJitter(j JitterSource) MachineOption {
	return func(m *Machine) {
		if j != nil {
			m.jitter = j
		}
	}
}

// NewMachine returns a Machine with default breakpoints and random jitter.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		breakpoints: DefaultBreakpoints,
		hysteresis:  DefaultHysteresis,
		maxTriggers: DefaultMaxTriggers,
		jitter:      RandJitter{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Breakpoints returns a copy of the configured breakpoints.
func (m *Machine) Breakpoints() []float64 {
	return append([]float64(nil), m.breakpoints...)
}

// ApplyTrigger escalates or calms p by one trigger, updates its phase and
// appends to its capped history. Intensity never leaves [0,1].
func (m *Machine) ApplyTrigger(p *Profile, tr Trigger) Transition {
	tx := Transition{Type: p.Type, BeforeIntensity: p.Intensity, BeforePhase: p.CurrentPhase}

	mag := clamp01(tr.Magnitude)
	step := mag * m.jitter.Jitter(p.Volatility)

	var next float64
	if tr.Positive {
		next = p.Intensity + p.EscalationRate*step
	} else {
		next = p.Intensity - p.DeEscalationRate*step
	}
	p.Intensity = clamp01(next)
	p.CurrentPhase = m.PhaseFor(p.CurrentPhase, p.Intensity)

	p.Triggers = append(p.Triggers, TriggerRecord{
		At:         tr.At,
		Magnitude:  mag,
		Positive:   tr.Positive,
		SourceHash: HashSource(tr.Source),
	})
	if over := len(p.Triggers) - m.maxTriggers; over > 0 {
		p.Triggers = append(p.Triggers[:0:0], p.Triggers[over:]...)
	}
	if !tr.At.IsZero() {
		p.UpdatedAt = tr.At
	}

	tx.AfterIntensity, tx.AfterPhase = p.Intensity, p.CurrentPhase
	return tx
}

// ApplyIdleDecay pulls intensity toward the base by (1 - weight), where
// weight is the recency weight since the last interaction. A weight of 1
// leaves the profile untouched; a weight near 0 returns it to base.
func (m *Machine) ApplyIdleDecay(p *Profile, weight float64) Transition {
	tx := Transition{Type: p.Type, BeforeIntensity: p.Intensity, BeforePhase: p.CurrentPhase}

	w := weight
	if math.IsNaN(w) {
		w = 1
	}
	w = clamp01(w)

	p.Intensity = clamp01(p.Intensity + (p.BaseIntensity-p.Intensity)*(1-w))
	p.CurrentPhase = m.PhaseFor(p.CurrentPhase, p.Intensity)

	tx.AfterIntensity, tx.AfterPhase = p.Intensity, p.CurrentPhase
	return tx
}

// Reset returns p to its base intensity and phase 0 and clears history.
func (m *Machine) Reset(p *Profile, at time.Time) {
	p.Intensity = clamp01(p.BaseIntensity)
	p.CurrentPhase = m.PhaseFor(0, p.Intensity)
	p.Triggers = nil
	p.UpdatedAt = at
}

// PhaseFor returns the phase for intensity given the current phase.
// Crossing breakpoint i upward enters phase i+1. Leaving phase i+1 requires
// intensity below breakpoint i minus the hysteresis margin.
func (m *Machine) PhaseFor(current int, intensity float64) int {
	n := len(m.breakpoints)
	if current < 0 {
		current = 0
	}
	if current > n {
		current = n
	}
	for current < n && intensity >= m.breakpoints[current] {
		current++
	}
	for current > 0 && intensity < m.breakpoints[current-1]-m.hysteresis {
		current--
	}
	return current
}

// ShouldDisplay reports whether p is strong enough to colour a response.
func ShouldDisplay(p Profile) bool {
	return p.Intensity >= p.ThresholdForDisplay
}

// HashSource returns a short stable digest of the text that fired a trigger,
// so history never stores raw chat content.
func HashSource(source string) string {
	if source == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])[:sourceHashLen]
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
