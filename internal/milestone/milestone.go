// Package milestone diffs bond snapshots into one-shot milestone events.
//
// Four families are checked independently: tier upgrades and threshold
// crossings of affinity, bond duration and interaction count. Each family
// yields at most one milestone per diff. When several thresholds are crossed
// at once only the highest is reported, which keeps notifications from
// flooding after a long offline stretch.
package milestone

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/companiond/internal/bond"
)

// Type identifies a milestone family.
type Type string

const (
	TypeTierUpgrade  Type = "tier_upgrade"
	TypeAffinity     Type = "affinity_milestone"
	TypeDuration     Type = "duration_milestone"
	TypeInteractions Type = "interaction_milestone"
)

// Default threshold ladders.
var (
	AffinityThresholds    = []int64{25, 50, 75, 90, 100}
	DurationThresholds    = []int64{7, 30, 100, 365}
	InteractionThresholds = []int64{50, 100, 500, 1000, 5000}
)

// Milestone is a notable crossing in a bond's progression.
type Milestone struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	CompanionID string    `json:"companion_id"`
	UserID      string    `json:"user_id"`
	Threshold   int64     `json:"threshold,omitempty"`
	OldValue    int64     `json:"old_value"`
	NewValue    int64     `json:"new_value"`
	FromTier    bond.Tier `json:"from_tier,omitempty"`
	ToTier      bond.Tier `json:"to_tier,omitempty"`
	At          time.Time `json:"at"`
}

// Detector compares snapshots. It holds no per-pair state.
type Detector struct {
	affinity     []int64
	duration     []int64
	interactions []int64
	now          func() time.Time
	newID        func() string
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithIDs overrides the milestone id generator.
func WithIDs(gen func() string) Option {
	return func(d *Detector) { d.newID = gen }
}

// NewDetector returns a Detector with the default ladders.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		affinity:     AffinityThresholds,
		duration:     DurationThresholds,
		interactions: InteractionThresholds,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff returns the milestones crossed between prev and curr. An unseeded
// prev yields nothing, so the first interaction of a pair never fires.
func (d *Detector) Diff(prev, curr bond.Snapshot) []Milestone {
	if !prev.Seeded || !curr.Seeded {
		return nil
	}

	var out []Milestone
	at := d.now()
	base := func(t Type) Milestone {
		return Milestone{
			ID:          d.newID(),
			Type:        t,
			CompanionID: curr.CompanionID,
			UserID:      curr.UserID,
			At:          at,
		}
	}

	if curr.Tier != prev.Tier && curr.Tier.Rank() > prev.Tier.Rank() {
		m := base(TypeTierUpgrade)
		m.FromTier, m.ToTier = prev.Tier, curr.Tier
		m.OldValue, m.NewValue = int64(prev.Tier.Rank()), int64(curr.Tier.Rank())
		out = append(out, m)
	}

	ladders := []struct {
		typ      Type
		old, new int64
		steps    []int64
	}{
		{TypeAffinity, int64(prev.Affinity), int64(curr.Affinity), d.affinity},
		{TypeDuration, int64(prev.DurationDays), int64(curr.DurationDays), d.duration},
		{TypeInteractions, int64(prev.TotalInteractions), int64(curr.TotalInteractions), d.interactions},
	}
	for _, l := range ladders {
		if threshold, ok := highestCrossed(l.steps, l.old, l.new); ok {
			m := base(l.typ)
			m.Threshold, m.OldValue, m.NewValue = threshold, l.old, l.new
			out = append(out, m)
		}
	}
	return out
}

// highestCrossed returns the largest step in (old, new].
func highestCrossed(steps []int64, old, new int64) (int64, bool) {
	var (
		best  int64
		found bool
	)
	for _, s := range steps {
		if old < s && s <= new {
			best, found = s, true
		}
	}
	return best, found
}
