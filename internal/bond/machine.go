package bond

import (
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/decay"
)

// Ladder holds the idle-day thresholds of the status ladder.
type Ladder struct {
	Warned  float64
	Dormant float64
	Fragile float64
}

// DefaultLadder is active < 3d <= warned < 7d <= dormant < 14d <= fragile.
var DefaultLadder = Ladder{Warned: 3, Dormant: 7, Fragile: 14}

// Validate checks the ladder is strictly ascending and positive.
func (l Ladder) Validate() error {
	if !(0 < l.Warned && l.Warned < l.Dormant && l.Dormant < l.Fragile) {
		return fmt.Errorf("status ladder must be strictly ascending: %v/%v/%v", l.Warned, l.Dormant, l.Fragile)
	}
	return nil
}

// Machine applies interactions, status and tier upgrades to bonds.
type Machine struct {
	ladder  Ladder
	maxStep int
}

// Option configures a Machine.
type Option func(*Machine)

// WithLadder overrides the status ladder. Invalid ladders are ignored.
func WithLadder(l Ladder) Option {
	return func(m *Machine) {
		if l.Validate() == nil {
			m.ladder = l
		}
	}
}

// WithMaxAffinityStep overrides the per-interaction affinity bound.
func WithMaxAffinityStep(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxStep = n
		}
	}
}

// NewMachine returns a Machine with the default ladder and step.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{ladder: DefaultLadder, maxStep: DefaultMaxAffinityStep}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxAffinityStep returns the per-interaction affinity bound.
func (m *Machine) MaxAffinityStep() int { return m.maxStep }

// AffinityDelta maps an interaction quality in [0,1] to an affinity step:
// 2 for high quality, 1 for decent, 0 otherwise.
func AffinityDelta(quality float64) int {
	switch {
	case math.IsNaN(quality):
		return 0
	case quality >= 0.8:
		return 2
	case quality >= 0.4:
		return 1
	default:
		return 0
	}
}

// RecordInteraction counts one interaction at now and nudges affinity by
// delta, clamped to [0, max step] and the affinity ceiling. It also resets
// the idle clock and refreshes the status.
func (m *Machine) RecordInteraction(b *Bond, now time.Time, delta int) {
	if b.Tier == "" {
		b.Tier = TierAcquaintance
	}
	if b.FirstInteractionAt.IsZero() {
		b.FirstInteractionAt = now
	}

	b.TotalInteractions++
	if days := int(decay.ElapsedDays(b.FirstInteractionAt, now)); days > b.DurationDays {
		b.DurationDays = days
	}

	delta = max(0, min(delta, m.maxStep))
	b.Affinity = max(0, min(b.Affinity+delta, MaxAffinity))

	if now.After(b.LastInteractionAt) {
		b.LastInteractionAt = now
	}
	b.Status = m.ComputeStatus(*b, now)
}

// ComputeStatus is a pure function of the days since the last interaction.
// A bond that never interacted is active.
func (m *Machine) ComputeStatus(b Bond, now time.Time) Status {
	idle := decay.ElapsedDays(b.LastInteractionAt, now)
	switch {
	case idle < m.ladder.Warned:
		return StatusActive
	case idle < m.ladder.Dormant:
		return StatusWarned
	case idle < m.ladder.Fragile:
		return StatusDormant
	default:
		return StatusFragile
	}
}

// TryUpgradeTier moves b one step up the successor graph when the next
// tier's requirements are all met. It never downgrades. A bond that
// qualifies for several tiers climbs one per call.
func (m *Machine) TryUpgradeTier(b *Bond) (Tier, bool) {
	if !b.Tier.Valid() {
		b.Tier = TierAcquaintance
	}
	next, ok := nextTier(b)
	if !ok {
		return b.Tier, false
	}
	b.Tier = next
	return next, true
}

func nextTier(b *Bond) (Tier, bool) {
	for _, candidate := range tiers[b.Tier].successors {
		if tiers[candidate].req.Met(b) {
			return candidate, true
		}
	}
	return "", false
}
