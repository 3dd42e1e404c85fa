package behavior

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range AllTypes() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := ParseType("narcissistic")
	require.ErrorIs(t, err, ErrUnknownType)
	assert.False(t, Type(200).Valid())
	assert.Equal(t, "behavior(200)", Type(200).String())
}

func TestType_TextRoundTrip(t *testing.T) {
	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("jealous_rivalry")))
	assert.Equal(t, JealousRivalry, typ)

	_, err := Type(99).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestIntensities(t *testing.T) {
	var in Intensities
	assert.Zero(t, in.Get(AvoidantAttachment), "absent types read as zero")

	in.Set(AvoidantAttachment, 1.4)
	in.Set(PlayfulTeasing, 0.3)
	in.Set(Type(42), 0.9)
	assert.Equal(t, 1.0, in.Get(AvoidantAttachment))

	typ, v := in.Max()
	assert.Equal(t, AvoidantAttachment, typ)
	assert.Equal(t, 1.0, v)

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"avoidant_attachment":1,"playful_teasing":0.3}`, string(out))

	var back Intensities
	require.NoError(t, json.Unmarshal([]byte(`{"playful_teasing":0.3,"retired_type":0.8}`), &back))
	assert.Equal(t, 0.3, back.Get(PlayfulTeasing))
}

func TestProgressionState_Apply(t *testing.T) {
	s := ProgressionState{CompanionID: "c1"}
	s.Apply(DeltaFor(Positive))
	s.Apply(DeltaFor(Negative))
	s.Apply(DeltaFor(Neutral).Add(DeltaFor(Positive)))

	assert.Equal(t, uint64(4), s.TotalInteractions)
	assert.Equal(t, uint64(2), s.PositiveInteractions)
	assert.Equal(t, uint64(1), s.NegativeInteractions)
	assert.NoError(t, s.Validate())

	s.NegativeInteractions = 10
	assert.Error(t, s.Validate())
}

func TestProgressionState_Reconcile(t *testing.T) {
	s := ProgressionState{TotalInteractions: 10, PositiveInteractions: 4}

	regressed := s.Reconcile(ProgressionState{TotalInteractions: 12, PositiveInteractions: 5})
	assert.False(t, regressed)
	assert.Equal(t, uint64(12), s.TotalInteractions)

	regressed = s.Reconcile(ProgressionState{TotalInteractions: 8, PositiveInteractions: 6})
	assert.True(t, regressed)
	assert.Equal(t, uint64(12), s.TotalInteractions, "lower bound kept")
	assert.Equal(t, uint64(6), s.PositiveInteractions)
}

func TestProfile_CloneDoesNotAlias(t *testing.T) {
	p := DefaultProfile("c1", PossessiveAttachment)
	p.Triggers = []TriggerRecord{{Magnitude: 0.5}}

	c := p.Clone()
	c.Triggers[0].Magnitude = 0.9
	assert.Equal(t, 0.5, p.Triggers[0].Magnitude)
}
