package bond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArcs_EveryTierHasOrderedChapters(t *testing.T) {
	for _, tier := range AllTiers() {
		list := arcs[tier]
		require.NotEmpty(t, list, tier)
		for _, a := range list {
			assert.Equal(t, tier, a.Tier)
			require.NotEmpty(t, a.Chapters, a.ID)
			for i := 1; i < len(a.Chapters); i++ {
				assert.Less(t, a.Chapters[i-1].MinAffinity, a.Chapters[i].MinAffinity, a.ID)
			}
		}
	}
}

func TestActiveArc_ChapterFollowsAffinity(t *testing.T) {
	tests := []struct {
		affinity    int
		wantChapter int
	}{
		{affinity: 0, wantChapter: 1},
		{affinity: 19, wantChapter: 1},
		{affinity: 20, wantChapter: 2},
		{affinity: 55, wantChapter: 3},
		{affinity: 85, wantChapter: 3},
	}
	for _, tt := range tests {
		b := New("c1", "u1")
		b.Affinity = tt.affinity

		p, ok := ActiveArc(b)
		require.True(t, ok, "affinity %d", tt.affinity)
		assert.Equal(t, "getting_to_know", p.Arc.ID)
		assert.Equal(t, tt.wantChapter, p.Chapter().Number, "affinity %d", tt.affinity)
	}
}

func TestActiveArc_CompletedAtNinety(t *testing.T) {
	b := New("c1", "u1")
	b.Affinity = ArcCompleteAffinity

	_, ok := ActiveArc(b)
	assert.False(t, ok)
	assert.Empty(t, NarrativeGuidance(b))

	progress := ArcsFor(b)
	require.Len(t, progress, 1)
	assert.True(t, progress[0].Completed)
}

func TestArcsFor_GatesOnAffinityAndDays(t *testing.T) {
	b := New("c1", "u1")
	b.Tier = TierRomantic
	b.Affinity = 65
	b.DurationDays = 10

	progress := ArcsFor(b)
	require.Len(t, progress, 2)
	assert.True(t, progress[0].Unlocked)
	assert.False(t, progress[1].Unlocked, "deepening_bond needs 14 days")

	p, ok := ActiveArc(b)
	require.True(t, ok)
	assert.Equal(t, "first_spark", p.Arc.ID)
	assert.Equal(t, 3, p.Chapter().Number, "all chapters reached keeps the last one current")

	b.DurationDays = 14
	progress = ArcsFor(b)
	assert.True(t, progress[1].Unlocked)
	assert.Equal(t, 0, progress[1].Current)
}

func TestChapterReached(t *testing.T) {
	b := New("c1", "u1")
	b.Affinity = 22

	c, ok := ChapterReached(19, b)
	require.True(t, ok)
	assert.Equal(t, 1, c.Number)

	_, ok = ChapterReached(20, b)
	assert.False(t, ok, "threshold already behind")

	b.Affinity = 52
	c, ok = ChapterReached(10, b)
	require.True(t, ok)
	assert.Equal(t, 2, c.Number, "highest crossed chapter wins")
}

func TestNarrativeGuidance(t *testing.T) {
	b := New("c1", "u1")
	b.Tier = TierMentor
	b.Affinity = 40

	g := NarrativeGuidance(b)
	assert.Contains(t, g, "The Path of Learning")
	assert.Contains(t, g, "Chapter 2, Life Lessons")
	assert.Contains(t, g, "practical guidance")
}
