package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err = NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings("trace", "console")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings("loud", "json")
	assert.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithPair(context.Background(), "comp-1", "user-9")
	ctx = WithRequestID(ctx, "req-42")

	tl.Info(ctx, "bond updated", zap.Int("affinity", 26))

	tl.AssertLogged(t, zapcore.InfoLevel, "bond updated")
	tl.AssertField(t, "bond updated", "companion.id", "comp-1")
	tl.AssertField(t, "bond updated", "user.id", "user-9")
	tl.AssertField(t, "bond updated", "request.id", "req-42")
	tl.AssertField(t, "bond updated", "affinity", int64(26))
}

func TestLogger_TraceLevelGated(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := &Logger{zap: zap.New(core)}

	logger.Trace(context.Background(), "chunk summarized")
	logger.Debug(context.Background(), "route chosen")

	require.Equal(t, 1, observed.Len())
	assert.Equal(t, "route chosen", observed.All()[0].Message)
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info(context.Background(), "discarded")

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Warn(ctx, "degraded_mode")
	tl.AssertLogged(t, zapcore.WarnLevel, "degraded_mode")
}

func TestRedactingEncoder_MasksChatContent(t *testing.T) {
	cfg := NewDefaultConfig()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg.Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)
	z := zap.New(core)

	z.Info("incoming",
		zap.String("message", "I miss you so much"),
		zap.String("note", "contact me at someone@example.com"),
		Content("prompt", "hello there"),
		Secret("api_key", config.Secret("sk-abc")),
		zap.String("path", "deep"),
	)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "[REDACTED]", out["message"])
	assert.Equal(t, "contact me at [REDACTED]", out["note"])
	assert.Equal(t, "[REDACTED:11]", out["prompt"])
	assert.Equal(t, "[REDACTED]", out["api_key"])
	assert.Equal(t, "deep", out["path"])
	assert.NotContains(t, buf.String(), "miss you")
	assert.NotContains(t, buf.String(), "sk-abc")
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    2,
		Thereafter: 0,
	})
	z := zap.New(sampled)

	for i := 0; i < 10; i++ {
		z.Info("same info")
		z.Error("same error")
	}

	assert.Equal(t, 2, observed.FilterMessage("same info").Len())
	assert.Equal(t, 10, observed.FilterMessage("same error").Len())
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	l, err = LevelFromString(" TRACE ")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	_, err = LevelFromString("nope")
	assert.Error(t, err)
}
