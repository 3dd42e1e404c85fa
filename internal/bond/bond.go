package bond

import "time"

// Status is a bond's time-decayed health. It depends only on how long ago
// the last interaction was, never on affinity.
type Status string

const (
	StatusActive  Status = "active"
	StatusWarned  Status = "warned"
	StatusDormant Status = "dormant"
	StatusFragile Status = "fragile"
)

const (
	// MaxAffinity is the ceiling of the affinity scale.
	MaxAffinity = 100

	// DefaultMaxAffinityStep bounds how far one interaction moves affinity.
	DefaultMaxAffinityStep = 3
)

// Bond is the relationship between one companion and one user.
type Bond struct {
	CompanionID        string    `json:"companion_id"`
	UserID             string    `json:"user_id"`
	Tier               Tier      `json:"tier"`
	Affinity           int       `json:"affinity_level"`
	Rarity             Rarity    `json:"rarity_tier,omitempty"`
	Status             Status    `json:"status"`
	TotalInteractions  uint64    `json:"total_interactions"`
	DurationDays       int       `json:"duration_days"`
	FirstInteractionAt time.Time `json:"first_interaction_at"`
	LastInteractionAt  time.Time `json:"last_interaction_at"`
}

// New returns the lazily created bond for a pair: lowest tier, zero affinity.
func New(companionID, userID string) Bond {
	return Bond{
		CompanionID: companionID,
		UserID:      userID,
		Tier:        TierAcquaintance,
		Rarity:      RarityCommon,
		Status:      StatusActive,
	}
}

// Snapshot is the comparable view of a bond used for milestone diffing.
// Seeded is false for the zero value so a first diff emits nothing.
type Snapshot struct {
	CompanionID       string
	UserID            string
	Tier              Tier
	Affinity          int
	DurationDays      int
	TotalInteractions uint64
	Seeded            bool
}

// Snapshot captures the milestone-relevant fields of b.
func (b Bond) Snapshot() Snapshot {
	return Snapshot{
		CompanionID:       b.CompanionID,
		UserID:            b.UserID,
		Tier:              b.Tier,
		Affinity:          b.Affinity,
		DurationDays:      b.DurationDays,
		TotalInteractions: b.TotalInteractions,
		Seeded:            true,
	}
}
