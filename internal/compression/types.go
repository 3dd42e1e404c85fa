package compression

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleCompanion Role = "companion"
	RoleSystem    Role = "system"
)

// SummaryPrefix heads every synthetic summary entry.
const SummaryPrefix = "[summary]"

// Message is one entry of a conversation history.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at,omitempty"`

	// Summary marks synthetic entries produced by the compressor.
	Summary bool `json:"summary,omitempty"`
}

// IsSummary reports whether m was produced by the compressor.
func (m Message) IsSummary() bool {
	return m.Summary
}

// summaryLines returns the body lines of a summary entry.
func (m Message) summaryLines() []string {
	body := strings.TrimPrefix(m.Content, SummaryPrefix)
	body = strings.TrimPrefix(body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// Window is the bounded view of a history handed to generation.
type Window struct {
	// Summary folds everything older than Recent. Nil when nothing was folded.
	Summary *Message `json:"summary,omitempty"`

	// Recent holds the newest messages verbatim, oldest first.
	Recent []Message `json:"recent"`

	// Guidance steers the next reply. It is not part of the history and
	// Messages does not return it.
	Guidance string `json:"guidance,omitempty"`
}

// Compressed reports whether the window carries a summary.
func (w Window) Compressed() bool {
	return w.Summary != nil
}

// Messages flattens the window: summary first, then recent messages.
func (w Window) Messages() []Message {
	out := make([]Message, 0, len(w.Recent)+1)
	if w.Summary != nil {
		out = append(out, *w.Summary)
	}
	return append(out, w.Recent...)
}

// Len is the number of entries Messages returns.
func (w Window) Len() int {
	n := len(w.Recent)
	if w.Summary != nil {
		n++
	}
	return n
}

// Config tunes the compressor.
type Config struct {
	// ChunkSize is how many older messages share one summary line.
	ChunkSize int

	// TopKeywords is how many keywords each summary line lists.
	TopKeywords int

	// ExcerptRunes truncates the per-chunk excerpts.
	ExcerptRunes int

	// Budgets maps a subscription plan to its recent-window size.
	Budgets map[string]int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    5,
		TopKeywords:  3,
		ExcerptRunes: 80,
		Budgets:      map[string]int{PlanFree: 10, PlanPlus: 20, PlanUltra: 40},
	}
}

// Plans with a built-in budget.
const (
	PlanFree  = "free"
	PlanPlus  = "plus"
	PlanUltra = "ultra"
)
