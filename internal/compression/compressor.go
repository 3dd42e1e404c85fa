package compression

import (
	"fmt"
	"strings"
)

// Compressor folds old history into a summary entry.
type Compressor struct {
	config Config
}

// NewCompressor returns a Compressor. Zero fields in cfg take their defaults.
func NewCompressor(cfg Config) *Compressor {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.TopKeywords <= 0 {
		cfg.TopKeywords = def.TopKeywords
	}
	if cfg.ExcerptRunes <= 0 {
		cfg.ExcerptRunes = def.ExcerptRunes
	}
	if len(cfg.Budgets) == 0 {
		cfg.Budgets = def.Budgets
	}
	return &Compressor{config: cfg}
}

// BudgetFor returns the recent-window size for plan. Unknown plans get the
// free budget.
func (c *Compressor) BudgetFor(plan string) int {
	if n, ok := c.config.Budgets[strings.ToLower(plan)]; ok && n > 0 {
		return n
	}
	if n, ok := c.config.Budgets[PlanFree]; ok && n > 0 {
		return n
	}
	return DefaultConfig().Budgets[PlanFree]
}

// Compress keeps the newest maxRecent messages and folds the rest into one
// summary entry. Histories that already fit come back unchanged with no
// summary. Existing summary entries are carried forward, never re-chunked,
// so Compress(Compress(m).Messages()) equals Compress(m).
func (c *Compressor) Compress(messages []Message, maxRecent int) Window {
	if maxRecent < 0 {
		maxRecent = 0
	}

	var carried []Message
	live := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.IsSummary() {
			carried = append(carried, m)
			continue
		}
		live = append(live, m)
	}

	if len(live) <= maxRecent {
		return Window{Summary: mergeSummaries(carried, nil, nil), Recent: live}
	}

	cut := len(live) - maxRecent
	older, recent := live[:cut], live[cut:]

	lines := make([]string, 0, (len(older)+c.config.ChunkSize-1)/c.config.ChunkSize)
	for start := 0; start < len(older); start += c.config.ChunkSize {
		end := min(start+c.config.ChunkSize, len(older))
		lines = append(lines, c.summarizeChunk(older[start:end]))
	}

	return Window{
		Summary: mergeSummaries(carried, lines, &older[len(older)-1]),
		Recent:  append(make([]Message, 0, len(recent)), recent...),
	}
}

// summarizeChunk renders one summary line.
func (c *Compressor) summarizeChunk(chunk []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%d msgs) topics: %s", len(chunk), strings.Join(topKeywords(chunk, c.config.TopKeywords), ", "))

	if m, ok := firstBy(chunk, RoleUser); ok {
		fmt.Fprintf(&b, " | user: %q", excerpt(m.Content, c.config.ExcerptRunes))
	}
	if m, ok := firstBy(chunk, RoleCompanion); ok {
		fmt.Fprintf(&b, " | companion: %q", excerpt(m.Content, c.config.ExcerptRunes))
	}
	return b.String()
}

func firstBy(chunk []Message, role Role) (Message, bool) {
	for _, m := range chunk {
		if m.Role == role {
			return m, true
		}
	}
	return Message{}, false
}

// mergeSummaries builds the single summary entry from carried summaries and
// freshly rendered lines. last dates the entry when new lines were added.
// A lone carried summary with no new lines is returned untouched.
func mergeSummaries(carried []Message, lines []string, last *Message) *Message {
	if len(carried) == 0 && len(lines) == 0 {
		return nil
	}
	if len(carried) == 1 && len(lines) == 0 {
		s := carried[0]
		return &s
	}

	all := make([]string, 0, len(lines)+len(carried)*2)
	for _, s := range carried {
		all = append(all, s.summaryLines()...)
	}
	all = append(all, lines...)

	out := Message{
		Role:    RoleSystem,
		Content: SummaryPrefix + "\n" + strings.Join(all, "\n"),
		Summary: true,
	}
	switch {
	case last != nil:
		out.At = last.At
	default:
		out.At = carried[len(carried)-1].At
	}
	return &out
}
