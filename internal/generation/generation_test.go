package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/companiond/internal/compression"
)

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLLM_Generate(t *testing.T) {
	model := &fakeModel{reply: "I missed you too!\n```json\n{\"behaviors\":{\"anxious_attachment\":-0.4},\"affinity\":2,\"sentiment\":\"positive\"}\n```"}
	g := NewLLMWithModel(model, Config{Model: "test", Temperature: 0.7, MaxTokens: 64})

	window := compression.Window{
		Summary: &compression.Message{Role: compression.RoleSystem, Content: "[summary]\nolder", Summary: true},
		Recent: []compression.Message{
			{Role: compression.RoleUser, Content: "hey"},
			{Role: compression.RoleCompanion, Content: "hi!"},
		},
	}

	out, err := g.Generate(context.Background(), "I missed you", window)
	require.NoError(t, err)
	assert.Equal(t, "I missed you too!", out.Text)
	require.NotNil(t, out.ProposedDelta)
	assert.Equal(t, 2, out.ProposedDelta.Affinity)
	assert.Equal(t, -0.4, out.ProposedDelta.Behaviors["anxious_attachment"])

	require.Len(t, model.messages, 5)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[1].Role, "summary goes in as system context")
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[2].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, model.messages[3].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[4].Role)
	assert.Equal(t, 64, model.opts.MaxTokens)
	assert.Equal(t, 0.7, model.opts.Temperature)
}

func TestLLM_GenerateSendsGuidanceAsSystemContext(t *testing.T) {
	model := &fakeModel{reply: "Tell me about your goals."}
	g := NewLLMWithModel(model, Config{Model: "test"})

	window := compression.Window{
		Recent:   []compression.Message{{Role: compression.RoleUser, Content: "hey"}},
		Guidance: "Guidance: explore the user's goals.",
	}

	_, err := g.Generate(context.Background(), "what next?", window)
	require.NoError(t, err)

	require.Len(t, model.messages, 4)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[1].Role)
	require.Len(t, model.messages[1].Parts, 1)
	assert.Equal(t, llms.TextContent{Text: window.Guidance}, model.messages[1].Parts[0])
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[3].Role)
}

func TestLLM_GenerateError(t *testing.T) {
	upstream := errors.New("503")
	g := NewLLMWithModel(&fakeModel{err: upstream}, Config{Model: "test"})

	_, err := g.Generate(context.Background(), "hello", compression.Window{})
	require.ErrorIs(t, err, upstream)
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		text      string
		withDelta bool
		wantErr   error
	}{
		{name: "plain text", raw: "  just words ", text: "just words"},
		{name: "fenced delta", raw: "ok\n```json\n{\"affinity\":1}\n```", text: "ok", withDelta: true},
		{name: "bare fence", raw: "ok ```{\"affinity\":1}```", text: "ok", withDelta: true},
		{name: "malformed delta dropped", raw: "fine\n```json\n{not json}\n```", text: "fine"},
		{name: "only delta", raw: "```json\n{\"affinity\":1}\n```", wantErr: ErrEmptyResponse},
		{name: "empty", raw: "", wantErr: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseOutput(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, out.Text)
			assert.Equal(t, tt.withDelta, out.ProposedDelta != nil)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, Config{}.Validate(), ErrInvalidConfig)
	assert.NoError(t, Config{Model: "gpt-4o-mini"}.Validate())
}
