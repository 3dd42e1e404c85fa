// Package behavior owns per-companion behavior intensity, escalation phase
// and trigger history.
//
// Behavior types form a closed set. Intensities are always in [0,1]; phases
// advance when intensity crosses an ascending breakpoint and retreat only once
// intensity drops a hysteresis margin below the breakpoint that was crossed.
package behavior

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type is a behavior tag from the closed set below.
type Type uint8

const (
	PossessiveAttachment Type = iota
	ProtectiveCaretaking
	PlayfulTeasing
	AnxiousAttachment
	AvoidantAttachment
	JealousRivalry
	EmotionalDependency
	MelancholicWithdrawal

	typeCount
)

var typeNames = [typeCount]string{
	PossessiveAttachment:  "possessive_attachment",
	ProtectiveCaretaking:  "protective_caretaking",
	PlayfulTeasing:        "playful_teasing",
	AnxiousAttachment:     "anxious_attachment",
	AvoidantAttachment:    "avoidant_attachment",
	JealousRivalry:        "jealous_rivalry",
	EmotionalDependency:   "emotional_dependency",
	MelancholicWithdrawal: "melancholic_withdrawal",
}

// ErrUnknownType is returned by ParseType for tags outside the closed set.
var ErrUnknownType = errors.New("unknown behavior type")

// AllTypes returns every behavior type in declaration order.
func AllTypes() []Type {
	out := make([]Type, typeCount)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// ParseType maps a tag to its Type.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Valid reports whether t is in the closed set.
func (t Type) Valid() bool { return t < typeCount }

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("behavior(%d)", uint8(t))
	}
	return typeNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return []byte(typeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TriggerRecord is one entry of a profile's trigger history.
type TriggerRecord struct {
	At         time.Time `json:"at"`
	Magnitude  float64   `json:"magnitude"`
	Positive   bool      `json:"positive"`
	SourceHash string    `json:"source_hash"`
}

// Profile is the state of one behavior type for one companion.
type Profile struct {
	CompanionID         string          `json:"companion_id"`
	Type                Type            `json:"behavior_type"`
	BaseIntensity       float64         `json:"base_intensity"`
	Intensity           float64         `json:"intensity"`
	EscalationRate      float64         `json:"escalation_rate"`
	DeEscalationRate    float64         `json:"de_escalation_rate"`
	CurrentPhase        int             `json:"current_phase"`
	Volatility          float64         `json:"volatility"`
	ThresholdForDisplay float64         `json:"threshold_for_display"`
	Triggers            []TriggerRecord `json:"triggers,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DefaultProfile returns the profile a companion gets the first time a
// behavior type is touched. Intensity starts at the base.
func DefaultProfile(companionID string, t Type) Profile {
	return Profile{
		CompanionID:         companionID,
		Type:                t,
		BaseIntensity:       0.1,
		Intensity:           0.1,
		EscalationRate:      0.15,
		DeEscalationRate:    0.1,
		Volatility:          0.2,
		ThresholdForDisplay: 0.5,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing history.
func (p Profile) Clone() Profile {
	if p.Triggers != nil {
		p.Triggers = append([]TriggerRecord(nil), p.Triggers...)
	}
	return p
}

// Intensities is a closed enumerated-key map from Type to intensity.
// Types never written read back as 0.
type Intensities [typeCount]float64

// Get returns the intensity for t, or 0 for an invalid type.
func (in *Intensities) Get(t Type) float64 {
	if !t.Valid() {
		return 0
	}
	return in[t]
}

// Set stores a clamped intensity for t. Invalid types are ignored.
func (in *Intensities) Set(t Type, v float64) {
	if t.Valid() {
		in[t] = clamp01(v)
	}
}

// Max returns the strongest type and its intensity.
func (in *Intensities) Max() (Type, float64) {
	best, bestV := Type(0), in[0]
	for i := 1; i < int(typeCount); i++ {
		if in[i] > bestV {
			best, bestV = Type(i), in[i]
		}
	}
	return best, bestV
}

// MarshalJSON encodes as {"possessive_attachment":0.3,...}, omitting zeros.
func (in Intensities) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, typeCount)
	for i, v := range in {
		if v != 0 {
			m[typeNames[i]] = v
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the map form. Unknown keys are skipped so retired
// types do not break old rows.
func (in *Intensities) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*in = Intensities{}
	for k, v := range m {
		if t, err := ParseType(k); err == nil {
			in.Set(t, v)
		}
	}
	return nil
}

// ProgressionState aggregates one companion's behavior activity across all
// its users. Counters never decrease except through an operator reset.
type ProgressionState struct {
	CompanionID          string      `json:"companion_id"`
	TotalInteractions    uint64      `json:"total_interactions"`
	PositiveInteractions uint64      `json:"positive_interactions"`
	NegativeInteractions uint64      `json:"negative_interactions"`
	CurrentIntensities   Intensities `json:"current_intensities"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Sentiment classifies a logged interaction.
type Sentiment int8

const (
	Neutral  Sentiment = 0
	Positive Sentiment = 1
	Negative Sentiment = -1
)

// Delta is an additive counter update. Deltas commute, so they converge no
// matter the order they are applied in.
type Delta struct {
	Total    uint64 `json:"total"`
	Positive uint64 `json:"positive"`
	Negative uint64 `json:"negative"`
}

// DeltaFor returns the delta recording one interaction of sentiment s.
func DeltaFor(s Sentiment) Delta {
	d := Delta{Total: 1}
	switch s {
	case Positive:
		d.Positive = 1
	case Negative:
		d.Negative = 1
	}
	return d
}

// Add combines two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{Total: d.Total + o.Total, Positive: d.Positive + o.Positive, Negative: d.Negative + o.Negative}
}

// Apply adds d to the counters.
func (s *ProgressionState) Apply(d Delta) {
	s.TotalInteractions += d.Total
	s.PositiveInteractions += d.Positive
	s.NegativeInteractions += d.Negative
}

// Validate checks positive+negative <= total.
func (s ProgressionState) Validate() error {
	if s.PositiveInteractions+s.NegativeInteractions > s.TotalInteractions {
		return fmt.Errorf("progression counters inconsistent: positive=%d negative=%d total=%d",
			s.PositiveInteractions, s.NegativeInteractions, s.TotalInteractions)
	}
	return nil
}

// Reconcile merges an observed state into s keeping the larger of each
// counter. It reports whether observed had regressed below s.
func (s *ProgressionState) Reconcile(observed ProgressionState) (regressed bool) {
	keep := func(dst *uint64, v uint64) {
		if v < *dst {
			regressed = true
			return
		}
		*dst = v
	}
	keep(&s.TotalInteractions, observed.TotalInteractions)
	keep(&s.PositiveInteractions, observed.PositiveInteractions)
	keep(&s.NegativeInteractions, observed.NegativeInteractions)
	return regressed
}

// Zero clears the counters and intensities but keeps the identity.
func (s *ProgressionState) Zero() {
	*s = ProgressionState{CompanionID: s.CompanionID, UpdatedAt: s.UpdatedAt}
}
