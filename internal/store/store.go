// Package store persists behavior profiles, progression state and bonds.
//
// Every message's mutations land through a single Commit call so they apply
// all-or-nothing. Progression counters are written as additive deltas, never
// read-modify-overwrite, so concurrent commits for the same companion from
// different users converge in any order.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence capability the engine needs.
type Store interface {
	// LoadProfiles returns every behavior profile of a companion.
	LoadProfiles(ctx context.Context, companionID string) ([]behavior.Profile, error)

	// LoadProgression returns the companion's progression state, zero-valued
	// when none exists yet.
	LoadProgression(ctx context.Context, companionID string) (behavior.ProgressionState, error)

	// GetBond returns the stored bond or ErrNotFound.
	GetBond(ctx context.Context, companionID, userID string) (bond.Bond, error)

	// GetOrCreateBond returns the stored bond, or a default one and true when
	// the pair has none. The default is only persisted by a later Commit.
	GetOrCreateBond(ctx context.Context, companionID, userID string) (bond.Bond, bool, error)

	// PopulationScores returns the composite scores of every bond in tier.
	PopulationScores(ctx context.Context, tier bond.Tier) ([]float64, error)

	// Commit applies a message's mutations atomically.
	Commit(ctx context.Context, set CommitSet) (CommitResult, error)

	// ResetBehaviors deletes the companion's profiles and zeroes its
	// progression counters. Bonds are untouched.
	ResetBehaviors(ctx context.Context, companionID string) error

	Close() error
}

// CommitSet is everything one processed message changes.
type CommitSet struct {
	CompanionID string
	UserID      string

	// Profiles are upserted by behavior type.
	Profiles []behavior.Profile

	// Progression is added to the stored counters.
	Progression behavior.Delta

	// Intensities replaces the stored snapshot when non-nil.
	Intensities *behavior.Intensities

	// Bond is upserted. Counters never move backwards and the tier never
	// drops below what is stored.
	Bond bond.Bond

	At time.Time
}

// CommitResult reports the state after a commit.
type CommitResult struct {
	Progression behavior.ProgressionState
	Bond        bond.Bond

	// BondRegressed is set when the stored bond was ahead of the committed
	// one, a sign that two messages for the pair ran concurrently. The larger
	// values were kept.
	BondRegressed bool
}

// mergeBond folds incoming into stored keeping monotonic fields monotonic.
func mergeBond(stored, incoming bond.Bond) (bond.Bond, bool) {
	out := incoming
	regressed := false

	if stored.TotalInteractions > incoming.TotalInteractions {
		out.TotalInteractions = stored.TotalInteractions
		regressed = true
	}
	if stored.DurationDays > incoming.DurationDays {
		out.DurationDays = stored.DurationDays
		regressed = true
	}
	if stored.Tier.Above(incoming.Tier) {
		out.Tier = stored.Tier
		regressed = true
	}
	if stored.LastInteractionAt.After(incoming.LastInteractionAt) {
		out.LastInteractionAt = stored.LastInteractionAt
	}
	if !stored.FirstInteractionAt.IsZero() &&
		(out.FirstInteractionAt.IsZero() || stored.FirstInteractionAt.Before(out.FirstInteractionAt)) {
		out.FirstInteractionAt = stored.FirstInteractionAt
	}
	return out, regressed
}
