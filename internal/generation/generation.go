// Package generation adapts an OpenAI-compatible chat model into the
// engine's text generation capability.
//
// The model is asked for a reply plus an optional fenced JSON block that
// proposes a behavior and bond delta. The proposal is advisory: callers
// clamp it through the state machines before anything is stored.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/companiond/internal/compression"
)

var (
	// ErrEmptyResponse is returned when the model produced no reply text.
	ErrEmptyResponse = errors.New("empty generation response")

	// ErrInvalidConfig is returned by NewLLM for unusable settings.
	ErrInvalidConfig = errors.New("invalid generation config")
)

// Delta is a model-proposed state change.
type Delta struct {
	// Behaviors maps a behavior tag to a signed magnitude. Positive values
	// escalate, negative values calm.
	Behaviors map[string]float64 `json:"behaviors,omitempty"`

	// Affinity is the proposed affinity step.
	Affinity int `json:"affinity"`

	// Sentiment is "positive", "negative" or "neutral".
	Sentiment string `json:"sentiment,omitempty"`
}

// Output is one generation result.
type Output struct {
	Text          string
	ProposedDelta *Delta
}

// Generator produces a companion reply for prompt given the context window.
type Generator interface {
	Generate(ctx context.Context, prompt string, window compression.Window) (Output, error)
}

// Config configures the LLM adapter.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// Validate checks cfg.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// LLM is a Generator over a langchaingo model.
type LLM struct {
	model  llms.Model
	config Config
}

var _ Generator = (*LLM)(nil)

// NewLLM creates an adapter talking to an OpenAI-compatible endpoint.
func NewLLM(cfg Config) (*LLM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return NewLLMWithModel(model, cfg), nil
}

// NewLLMWithModel wraps an existing model. Tests inject fakes through it.
func NewLLMWithModel(model llms.Model, cfg Config) *LLM {
	return &LLM{model: model, config: cfg}
}

const systemPrompt = `You are an AI companion continuing a conversation.
Reply in character in plain text. After the reply, add a fenced json block:
` + "```json" + `
{"behaviors": {"<behavior_tag>": <signed magnitude -1..1>}, "affinity": <0..3>, "sentiment": "positive|negative|neutral"}
` + "```" + `
Only include behaviors the message actually affects.`

// Generate asks the model for a reply and parses its proposed delta.
func (l *LLM) Generate(ctx context.Context, prompt string, window compression.Window) (Output, error) {
	messages := make([]llms.MessageContent, 0, window.Len()+3)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt))
	if window.Guidance != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, window.Guidance))
	}
	for _, m := range window.Messages() {
		messages = append(messages, llms.TextParts(roleFor(m), m.Content))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, prompt))

	opts := []llms.CallOption{llms.WithTemperature(l.config.Temperature)}
	if l.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.config.MaxTokens))
	}

	resp, err := l.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return Output{}, fmt.Errorf("generating content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Output{}, ErrEmptyResponse
	}
	return ParseOutput(resp.Choices[0].Content)
}

func roleFor(m compression.Message) schema.ChatMessageType {
	switch {
	case m.IsSummary(), m.Role == compression.RoleSystem:
		return schema.ChatMessageTypeSystem
	case m.Role == compression.RoleCompanion:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

var deltaBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseOutput splits raw model output into reply text and proposed delta.
// A malformed delta block is dropped rather than failing the reply.
func ParseOutput(raw string) (Output, error) {
	var out Output

	text := raw
	if loc := deltaBlock.FindStringSubmatchIndex(raw); loc != nil {
		var d Delta
		if err := json.Unmarshal([]byte(raw[loc[2]:loc[3]]), &d); err == nil {
			out.ProposedDelta = &d
		}
		text = raw[:loc[0]] + raw[loc[1]:]
	}

	out.Text = strings.TrimSpace(text)
	if out.Text == "" {
		return Output{}, ErrEmptyResponse
	}
	return out, nil
}
