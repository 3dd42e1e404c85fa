package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
)

const (
	// DefaultComplexityThreshold is the analyzer score at which a message is
	// considered high stakes.
	DefaultComplexityThreshold = 0.6

	// DefaultSentimentThreshold is the trigger strength that alone forces
	// DeepPath.
	DefaultSentimentThreshold = 0.6

	longMessageRunes = 400
)

// Complexity weights; they sum to 1.
const (
	weightTriggers  = 0.4
	weightLength    = 0.2
	weightQuestions = 0.15
	weightEmotion   = 0.25
)

var emotionLexicon = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		love hate miss lonely alone sad cry crying hurt hurts angry furious scared afraid
		anxious worried jealous depressed upset heartbroken betrayed ashamed guilty
		happy excited grateful sorry regret broken empty terrified devastated`) {
		emotionLexicon[w] = struct{}{}
	}
}

// Analysis explains a complexity score.
type Analysis struct {
	Score   float64
	Reasons []string
}

// ComplexityAnalyzer scores how much judgement a message needs from 0 to 1.
type ComplexityAnalyzer struct{}

// Analyze combines detected trigger strength, length, questions and
// emotional vocabulary.
func (ComplexityAnalyzer) Analyze(text string, det behavior.Detection) Analysis {
	var a Analysis

	if s := det.Strength(); s > 0 {
		a.Score += weightTriggers * s
		a.Reasons = append(a.Reasons, "triggers")
	}

	if n := utf8.RuneCountInString(text); n > 0 {
		a.Score += weightLength * min(float64(n)/longMessageRunes, 1)
		if n >= longMessageRunes {
			a.Reasons = append(a.Reasons, "long_message")
		}
	}

	if q := strings.Count(text, "?"); q > 0 {
		a.Score += weightQuestions * min(float64(q), 3) / 3
		if q >= 2 {
			a.Reasons = append(a.Reasons, "questions")
		}
	}

	if hits := emotionHits(text); hits > 0 {
		a.Score += weightEmotion * min(float64(hits), 3) / 3
		a.Reasons = append(a.Reasons, "emotional_language")
	}

	a.Score = min(a.Score, 1)
	return a
}

func emotionHits(text string) int {
	hits := 0
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	}) {
		if _, ok := emotionLexicon[w]; ok {
			hits++
		}
	}
	return hits
}

// Route is a routing decision.
type Route struct {
	Path       Path
	Complexity Analysis
	Reasons    []string
}

// Router picks FastPath or DeepPath for a message.
type Router struct {
	analyzer            ComplexityAnalyzer
	complexityThreshold float64
	sentimentThreshold  float64
}

// NewRouter returns a Router. Non-positive thresholds take the defaults.
func NewRouter(complexityThreshold, sentimentThreshold float64) *Router {
	if complexityThreshold <= 0 {
		complexityThreshold = DefaultComplexityThreshold
	}
	if sentimentThreshold <= 0 {
		sentimentThreshold = DefaultSentimentThreshold
	}
	return &Router{complexityThreshold: complexityThreshold, sentimentThreshold: sentimentThreshold}
}

// RouteInput is what the router looks at.
type RouteInput struct {
	Message    string
	Detection  behavior.Detection
	Profiles   []behavior.Profile
	BondStatus bond.Status
}

// Route returns DeepPath when a behavior is displayed, the bond is not
// active, the message carries strong sentiment or scores as complex.
// Everything else takes FastPath.
func (r *Router) Route(in RouteInput) Route {
	out := Route{Path: PathFast, Complexity: r.analyzer.Analyze(in.Message, in.Detection)}

	for _, p := range in.Profiles {
		if behavior.ShouldDisplay(p) {
			out.Reasons = append(out.Reasons, "displayed:"+p.Type.String())
		}
	}
	if in.BondStatus != "" && in.BondStatus != bond.StatusActive {
		out.Reasons = append(out.Reasons, "bond_"+string(in.BondStatus))
	}
	if in.Detection.Strength() >= r.sentimentThreshold {
		out.Reasons = append(out.Reasons, "strong_sentiment")
	}
	if out.Complexity.Score >= r.complexityThreshold {
		out.Reasons = append(out.Reasons, "complex")
	}

	if len(out.Reasons) > 0 {
		out.Path = PathDeep
	}
	return out
}
