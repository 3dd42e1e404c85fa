package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.False(t, tel.Health().Degraded)
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_WithInjectedExporters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsEnabled = false

	exp := tracetest.NewInMemoryExporter()
	tel, err := New(context.Background(), cfg, WithSpanExporter(exp))
	require.NoError(t, err)

	_, span := tel.Tracer("test").Start(context.Background(), "companion.process")
	span.End()
	require.NoError(t, tel.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "companion.process", spans[0].Name)
	assert.True(t, tel.IsEnabled())

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.IsEnabled())
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.LoggerProvider()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})
	h := tel.Health()
	assert.False(t, h.Healthy)
	assert.True(t, h.Degraded)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "disabled skips checks", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "local insecure ok", mutate: func(c *Config) { c.Enabled = true }},
		{
			name:    "remote insecure rejected",
			mutate:  func(c *Config) { c.Enabled, c.Endpoint = true, "otel.example.com:4317" },
			wantErr: "insecure export",
		},
		{
			name:    "bad protocol",
			mutate:  func(c *Config) { c.Enabled, c.Protocol = true, "udp" },
			wantErr: "unsupported protocol",
		},
		{
			name:    "sample rate",
			mutate:  func(c *Config) { c.Enabled, c.SampleRate = true, 1.5 },
			wantErr: "sample rate",
		},
		{
			name:    "export interval",
			mutate:  func(c *Config) { c.Enabled, c.ExportInterval = true, 0 },
			wantErr: "export interval",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	for endpoint, want := range map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"[::1]:4317":            true,
		"http://localhost:4318": true,
		"collector:4317":        false,
		"10.0.0.5:4317":         false,
	} {
		cfg := &Config{Endpoint: endpoint}
		assert.Equal(t, want, cfg.isLocalEndpoint(), endpoint)
	}
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "companiond-staging",
		Endpoint:        "https://otel.example.com",
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.ShutdownAfter)
}

func TestTestTelemetry_Readers(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "op")
	span.SetAttributes(attribute.String("path", "fast"))
	span.End()
	tt.AssertSpanExists(t, "op")
	tt.AssertSpanAttribute(t, "op", "path", "fast")

	meter := tt.Meter("test")
	counter, err := meter.Int64Counter("messages.total")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	counter.Add(ctx, 3, metricWithPath("deep"))

	hist, err := meter.Float64Histogram("duration.seconds")
	require.NoError(t, err)
	hist.Record(ctx, 0.2, metricWithPath("deep"))

	assert.Equal(t, int64(5), tt.CounterValue(t, "messages.total"))
	assert.Equal(t, int64(3), tt.CounterValue(t, "messages.total", attribute.String("path", "deep")))
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "duration.seconds", attribute.String("path", "deep")))
	assert.Zero(t, tt.CounterValue(t, "missing.total"))
}
