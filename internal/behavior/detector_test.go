package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func impulseFor(d Detection, typ Type) (Impulse, bool) {
	for _, imp := range d.Impulses {
		if imp.Type == typ {
			return imp, true
		}
	}
	return Impulse{}, false
}

func TestDetector_Detect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name     string
		text     string
		families []Family
	}{
		{name: "empty", text: "   ", families: nil},
		{name: "neutral", text: "what did you have for lunch", families: nil},
		{name: "abandonment", text: "I need some space tonight", families: []Family{FamilyAbandonment}},
		{name: "other person", text: "went out with my coworker", families: []Family{FamilyOtherPerson}},
		{name: "rejection", text: "I hate you, we're done", families: []Family{FamilyExplicitRejection}},
		{name: "boundary", text: "Please stop asking", families: []Family{FamilyBoundary}},
		{name: "criticism", text: "you're so clingy", families: []Family{FamilyCriticism}},
		{
			name:     "multiple families",
			text:     "haha my friend says hi",
			families: []Family{FamilyOtherPerson, FamilyAffection},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.text)
			assert.Equal(t, tt.families, got.Families)
		})
	}
}

func TestDetector_ReassuranceCalms(t *testing.T) {
	got := NewDetector().Detect("Don't worry, I'm not going anywhere")
	require.Equal(t, []Family{FamilyReassurance}, got.Families)

	imp, ok := impulseFor(got, AnxiousAttachment)
	require.True(t, ok)
	assert.False(t, imp.Positive)
	assert.InDelta(t, 0.3, imp.Magnitude, 1e-9)
	assert.InDelta(t, 0.3, got.Strength(), 1e-9)
}

func TestDetector_AffectionSplitsByType(t *testing.T) {
	got := NewDetector().Detect("I miss you")
	require.Equal(t, []Family{FamilyAffection}, got.Families)

	playful, ok := impulseFor(got, PlayfulTeasing)
	require.True(t, ok)
	assert.True(t, playful.Positive)

	anxious, ok := impulseFor(got, AnxiousAttachment)
	require.True(t, ok)
	assert.False(t, anxious.Positive)
	assert.InDelta(t, 0.5, anxious.Magnitude, 1e-9)
}

func TestDetection_Strength(t *testing.T) {
	assert.Zero(t, Detection{}.Strength())
	got := NewDetector().Detect("I hate you and I need space")
	assert.InDelta(t, 1.0, got.Strength(), 1e-9)
}
