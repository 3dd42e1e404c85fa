package orchestrator

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/compression"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
)

// State is a step of the per-message lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateFastPath
	StateDeepPath
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFastPath:
		return "fast_path"
	case StateDeepPath:
		return "deep_path"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Path is the update strategy a message took.
type Path string

const (
	PathFast Path = "fast"
	PathDeep Path = "deep"
)

// Degraded reasons.
const (
	ReasonTimeout       = "timeout"
	ReasonUpstreamError = "upstream_error"
	ReasonRateLimited   = "rate_limited"
	ReasonDisabled      = "generation_disabled"
)

const (
	maxIDLength      = 128
	maxMessageLength = 8000
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]*$`)

// Request is one incoming user message.
type Request struct {
	CompanionID string
	UserID      string
	Message     string

	// History is the conversation so far, oldest first. It may already
	// contain a summary entry from a previous compression.
	History []compression.Message

	// Plan selects the recent-window budget. Unknown plans get the free budget.
	Plan string
}

// Validate checks ids and message bounds.
func (r Request) Validate() error {
	if err := validateID("companion_id", r.CompanionID); err != nil {
		return err
	}
	if err := validateID("user_id", r.UserID); err != nil {
		return err
	}
	if r.Message == "" {
		return invalid("message", "is required")
	}
	if !utf8.ValidString(r.Message) {
		return invalid("message", "is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(r.Message); n > maxMessageLength {
		return invalid("message", "exceeds %d characters (got %d)", maxMessageLength, n)
	}
	return nil
}

func validateID(field, id string) error {
	switch {
	case id == "":
		return invalid(field, "is required")
	case len(id) > maxIDLength:
		return invalid(field, "exceeds %d bytes", maxIDLength)
	case !idPattern.MatchString(id):
		return invalid(field, "contains unsupported characters")
	}
	return nil
}

// Result is what ProcessMessage returns.
type Result struct {
	ResponseText string
	Milestones   []milestone.Milestone
	BondStatus   bond.Status

	Path           Path
	Degraded       bool
	DegradedReason string

	Tier     bond.Tier
	Affinity int
	Rarity   bond.Rarity

	// Transitions are the behavior changes applied for this message.
	Transitions []behavior.Transition

	// Window is the compressed conversation including this exchange.
	Window compression.Window

	Duration time.Duration
}

// TransitionFunc observes lifecycle state changes.
type TransitionFunc func(from, to State)
