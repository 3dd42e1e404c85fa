package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
)

var commitAt = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// storeSuite runs the same contract checks against every implementation.
func storeSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty reads", func(t *testing.T) {
		s := open(t)

		profiles, err := s.LoadProfiles(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, profiles)

		prog, err := s.LoadProgression(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", prog.CompanionID)
		assert.Zero(t, prog.TotalInteractions)

		_, err = s.GetBond(ctx, "c1", "u1")
		assert.ErrorIs(t, err, ErrNotFound)

		b, created, err := s.GetOrCreateBond(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, bond.TierAcquaintance, b.Tier)
		assert.Zero(t, b.Affinity)

		_, err = s.GetBond(ctx, "c1", "u1")
		assert.ErrorIs(t, err, ErrNotFound, "default bond is not persisted until commit")
	})

	t.Run("commit round trip", func(t *testing.T) {
		s := open(t)

		p := behavior.DefaultProfile("c1", behavior.JealousRivalry)
		p.Intensity = 0.6
		p.CurrentPhase = 2
		p.Triggers = []behavior.TriggerRecord{{At: commitAt, Magnitude: 0.65, Positive: true, SourceHash: "abc"}}

		var in behavior.Intensities
		in.Set(behavior.JealousRivalry, 0.6)

		b := bond.New("c1", "u1")
		b.Affinity, b.TotalInteractions = 3, 1
		b.FirstInteractionAt, b.LastInteractionAt = commitAt, commitAt

		res, err := s.Commit(ctx, CommitSet{
			CompanionID: "c1",
			UserID:      "u1",
			Profiles:    []behavior.Profile{p},
			Progression: behavior.DeltaFor(behavior.Positive),
			Intensities: &in,
			Bond:        b,
			At:          commitAt,
		})
		require.NoError(t, err)
		assert.False(t, res.BondRegressed)
		assert.Equal(t, uint64(1), res.Progression.TotalInteractions)
		assert.Equal(t, uint64(1), res.Progression.PositiveInteractions)

		profiles, err := s.LoadProfiles(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, behavior.JealousRivalry, profiles[0].Type)
		assert.Equal(t, 0.6, profiles[0].Intensity)
		assert.Equal(t, 2, profiles[0].CurrentPhase)
		require.Len(t, profiles[0].Triggers, 1)
		assert.Equal(t, "abc", profiles[0].Triggers[0].SourceHash)

		prog, err := s.LoadProgression(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, 0.6, prog.CurrentIntensities.Get(behavior.JealousRivalry))

		got, err := s.GetBond(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Affinity)
		assert.True(t, got.LastInteractionAt.Equal(commitAt))
	})

	t.Run("progression deltas are additive", func(t *testing.T) {
		s := open(t)
		for _, sent := range []behavior.Sentiment{behavior.Positive, behavior.Negative, behavior.Neutral, behavior.Positive} {
			_, err := s.Commit(ctx, CommitSet{CompanionID: "c1", Progression: behavior.DeltaFor(sent), At: commitAt})
			require.NoError(t, err)
		}

		prog, err := s.LoadProgression(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, uint64(4), prog.TotalInteractions)
		assert.Equal(t, uint64(2), prog.PositiveInteractions)
		assert.Equal(t, uint64(1), prog.NegativeInteractions)
		assert.NoError(t, prog.Validate())
	})

	t.Run("bond counters never regress", func(t *testing.T) {
		s := open(t)
		ahead := bond.New("c1", "u1")
		ahead.Tier, ahead.TotalInteractions, ahead.DurationDays = bond.TierConfidant, 40, 12
		_, err := s.Commit(ctx, CommitSet{CompanionID: "c1", UserID: "u1", Bond: ahead, At: commitAt})
		require.NoError(t, err)

		stale := bond.New("c1", "u1")
		stale.TotalInteractions, stale.DurationDays, stale.Affinity = 39, 12, 55
		res, err := s.Commit(ctx, CommitSet{CompanionID: "c1", UserID: "u1", Bond: stale, At: commitAt})
		require.NoError(t, err)
		assert.True(t, res.BondRegressed)

		got, err := s.GetBond(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, uint64(40), got.TotalInteractions)
		assert.Equal(t, bond.TierConfidant, got.Tier)
		assert.Equal(t, 55, got.Affinity)
	})

	t.Run("population scores by tier", func(t *testing.T) {
		s := open(t)
		for i, aff := range []int{20, 60, 100} {
			b := bond.New("c1", string(rune('a'+i)))
			b.Affinity = aff
			_, err := s.Commit(ctx, CommitSet{CompanionID: "c1", UserID: b.UserID, Bond: b, At: commitAt})
			require.NoError(t, err)
		}
		other := bond.New("c2", "z")
		other.Tier = bond.TierMentor
		_, err := s.Commit(ctx, CommitSet{CompanionID: "c2", UserID: "z", Bond: other, At: commitAt})
		require.NoError(t, err)

		scores, err := s.PopulationScores(ctx, bond.TierAcquaintance)
		require.NoError(t, err)
		assert.ElementsMatch(t, []float64{0.1, 0.3, 0.5}, scores)
	})

	t.Run("reset keeps bonds", func(t *testing.T) {
		s := open(t)
		b := bond.New("c1", "u1")
		b.Affinity = 42
		_, err := s.Commit(ctx, CommitSet{
			CompanionID: "c1",
			UserID:      "u1",
			Profiles:    []behavior.Profile{behavior.DefaultProfile("c1", behavior.AnxiousAttachment)},
			Progression: behavior.DeltaFor(behavior.Positive),
			Bond:        b,
			At:          commitAt,
		})
		require.NoError(t, err)

		require.NoError(t, s.ResetBehaviors(ctx, "c1"))

		profiles, err := s.LoadProfiles(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, profiles)

		prog, err := s.LoadProgression(ctx, "c1")
		require.NoError(t, err)
		assert.Zero(t, prog.TotalInteractions)

		got, err := s.GetBond(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, 42, got.Affinity)
	})
}

func TestMemory(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store { return NewMemory() })
}

func TestMemory_CancelledCommitWritesNothing(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Commit(ctx, CommitSet{CompanionID: "c1", Progression: behavior.DeltaFor(behavior.Positive)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.Commits())

	prog, err := m.LoadProgression(context.Background(), "c1")
	require.NoError(t, err)
	assert.Zero(t, prog.TotalInteractions)
}

func TestMergeBond(t *testing.T) {
	early := commitAt.Add(-48 * time.Hour)
	stored := bond.Bond{Tier: bond.TierMentor, TotalInteractions: 10, FirstInteractionAt: early, LastInteractionAt: commitAt}
	incoming := bond.Bond{Tier: bond.TierAcquaintance, TotalInteractions: 12, FirstInteractionAt: commitAt, LastInteractionAt: early}

	got, regressed := mergeBond(stored, incoming)
	assert.True(t, regressed, "tier drop counts as regression")
	assert.Equal(t, bond.TierMentor, got.Tier)
	assert.Equal(t, uint64(12), got.TotalInteractions)
	assert.Equal(t, early, got.FirstInteractionAt)
	assert.Equal(t, commitAt, got.LastInteractionAt)
}
