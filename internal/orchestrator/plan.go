package orchestrator

import (
	"math"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/generation"
)

// familyGenerated tags impulses proposed by the generation capability.
const familyGenerated behavior.Family = "generated"

// plan is the candidate update for one message, before the state machines
// apply it.
type plan struct {
	impulses  []behavior.Impulse
	sentiment behavior.Sentiment
	affinity  int
	text      string
}

var (
	warmFamilies = map[behavior.Family]bool{
		behavior.FamilyAffection:   true,
		behavior.FamilyReassurance: true,
	}
	hurtFamilies = map[behavior.Family]bool{
		behavior.FamilyAbandonment:       true,
		behavior.FamilyCriticism:         true,
		behavior.FamilyBoundary:          true,
		behavior.FamilyExplicitRejection: true,
	}
)

// sentimentOf classifies a detection. Any hurtful family makes the
// interaction negative.
func sentimentOf(det behavior.Detection) behavior.Sentiment {
	warm := false
	for _, f := range det.Families {
		if hurtFamilies[f] {
			return behavior.Negative
		}
		warm = warm || warmFamilies[f]
	}
	if warm {
		return behavior.Positive
	}
	return behavior.Neutral
}

// qualityOf maps sentiment to an interaction quality for AffinityDelta.
func qualityOf(s behavior.Sentiment) float64 {
	switch s {
	case behavior.Positive:
		return 0.9
	case behavior.Negative:
		return 0
	default:
		return 0.5
	}
}

func (o *Orchestrator) fastPlan(message string, det behavior.Detection, profiles []behavior.Profile) plan {
	s := sentimentOf(det)
	dominant, displayed := dominantBehavior(profiles)
	return plan{
		impulses:  det.Impulses,
		sentiment: s,
		affinity:  bond.AffinityDelta(qualityOf(s)),
		text:      o.responder.Respond(message, det, dominant, displayed),
	}
}

// deepPlan turns generation output into a plan. Proposed values are only
// hints: unknown behavior tags are dropped, magnitudes and affinity steps
// are clamped later by the state machines, and anything missing falls back
// to the rule-based reading of the message.
func (o *Orchestrator) deepPlan(out generation.Output, fallback plan) plan {
	p := fallback
	if strings.TrimSpace(out.Text) != "" {
		p.text = out.Text
	}

	d := out.ProposedDelta
	if d == nil {
		return p
	}

	keys := make([]string, 0, len(d.Behaviors))
	for k := range d.Behaviors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var impulses []behavior.Impulse
	for _, k := range keys {
		t, err := behavior.ParseType(k)
		if err != nil {
			continue
		}
		v := d.Behaviors[k]
		if v == 0 || math.IsNaN(v) {
			continue
		}
		impulses = append(impulses, behavior.Impulse{
			Family:    familyGenerated,
			Type:      t,
			Magnitude: math.Min(math.Abs(v), 1),
			Positive:  v > 0,
		})
	}
	if len(impulses) > 0 {
		p.impulses = impulses
	}

	switch d.Sentiment {
	case "positive":
		p.sentiment = behavior.Positive
	case "negative":
		p.sentiment = behavior.Negative
	case "neutral":
		p.sentiment = behavior.Neutral
	}

	p.affinity = max(0, min(d.Affinity, o.bonds.MaxAffinityStep()))
	return p
}

// dominantBehavior returns the most intense displayed behavior.
func dominantBehavior(profiles []behavior.Profile) (behavior.Type, bool) {
	var (
		best  behavior.Type
		top   = -1.0
		found bool
	)
	for _, p := range profiles {
		if behavior.ShouldDisplay(p) && p.Intensity > top {
			best, top, found = p.Type, p.Intensity, true
		}
	}
	return best, found
}
