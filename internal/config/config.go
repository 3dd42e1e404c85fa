// Package config provides configuration loading for companiond.
//
// Values come from hardcoded defaults, an optional YAML file and
// COMPANIOND_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Config holds the complete companiond configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Decay         DecayConfig         `koanf:"decay"`
	Behavior      BehaviorConfig      `koanf:"behavior"`
	Bond          BondConfig          `koanf:"bond"`
	Window        WindowConfig        `koanf:"window"`
	Engine        EngineConfig        `koanf:"engine"`
	Generation    GenerationConfig    `koanf:"generation"`
	NATS          NATSConfig          `koanf:"nats"`
	Store         StoreConfig         `koanf:"store"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// LockTimeout bounds the wait for a pair's sequencing token.
	LockTimeout time.Duration `koanf:"lock_timeout"`
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// DecayConfig tunes the recency weight.
type DecayConfig struct {
	HalfLifeDays float64 `koanf:"half_life_days"`
}

// BehaviorConfig tunes the behavior state machine.
type BehaviorConfig struct {
	Breakpoints      []float64 `koanf:"breakpoints"`
	HysteresisMargin float64   `koanf:"hysteresis_margin"`
	MaxTriggers      int       `koanf:"max_triggers"`
}

// BondConfig tunes the bond status ladder and affinity steps.
type BondConfig struct {
	WarnedDays      float64 `koanf:"warned_days"`
	DormantDays     float64 `koanf:"dormant_days"`
	FragileDays     float64 `koanf:"fragile_days"`
	MaxAffinityStep int     `koanf:"max_affinity_step"`
}

// WindowConfig tunes the context compressor.
type WindowConfig struct {
	ChunkSize    int            `koanf:"chunk_size"`
	TopKeywords  int            `koanf:"top_keywords"`
	ExcerptRunes int            `koanf:"excerpt_runes"`
	Budgets      map[string]int `koanf:"budgets"`
}

// EngineConfig tunes fast/deep routing.
type EngineConfig struct {
	DeepTimeout        time.Duration `koanf:"deep_timeout"`
	DeepRatePerSecond  float64       `koanf:"deep_rate_per_second"`
	DeepBurst          int           `koanf:"deep_burst"`
	SentimentThreshold float64       `koanf:"sentiment_threshold"`
	NotifyTimeout      time.Duration `koanf:"notify_timeout"`
}

// GenerationConfig configures the OpenAI-compatible generation endpoint.
type GenerationConfig struct {
	Enabled     bool    `koanf:"enabled"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// NATSConfig configures the milestone notification sink.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// StoreConfig selects and tunes persistence.
type StoreConfig struct {
	Driver              string        `koanf:"driver"`
	Path                string        `koanf:"path"`
	PopulationCacheTTL  time.Duration `koanf:"population_cache_ttl"`
	PopulationCacheSize int           `koanf:"population_cache_size"`
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.LockTimeout == 0 {
		cfg.Server.LockTimeout = 10 * time.Second
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "companiond"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}

	if cfg.Decay.HalfLifeDays == 0 {
		cfg.Decay.HalfLifeDays = 7
	}

	if len(cfg.Behavior.Breakpoints) == 0 {
		cfg.Behavior.Breakpoints = []float64{0.25, 0.5, 0.75, 0.9}
	}
	if cfg.Behavior.HysteresisMargin == 0 {
		cfg.Behavior.HysteresisMargin = 0.05
	}
	if cfg.Behavior.MaxTriggers == 0 {
		cfg.Behavior.MaxTriggers = 50
	}

	if cfg.Bond.WarnedDays == 0 {
		cfg.Bond.WarnedDays = 3
	}
	if cfg.Bond.DormantDays == 0 {
		cfg.Bond.DormantDays = 7
	}
	if cfg.Bond.FragileDays == 0 {
		cfg.Bond.FragileDays = 14
	}
	if cfg.Bond.MaxAffinityStep == 0 {
		cfg.Bond.MaxAffinityStep = 3
	}

	if cfg.Window.ChunkSize == 0 {
		cfg.Window.ChunkSize = 5
	}
	if cfg.Window.TopKeywords == 0 {
		cfg.Window.TopKeywords = 3
	}
	if cfg.Window.ExcerptRunes == 0 {
		cfg.Window.ExcerptRunes = 80
	}
	if len(cfg.Window.Budgets) == 0 {
		cfg.Window.Budgets = map[string]int{"free": 10, "plus": 20, "ultra": 40}
	}

	if cfg.Engine.DeepTimeout == 0 {
		cfg.Engine.DeepTimeout = 4 * time.Second
	}
	if cfg.Engine.DeepRatePerSecond == 0 {
		cfg.Engine.DeepRatePerSecond = 5
	}
	if cfg.Engine.DeepBurst == 0 {
		cfg.Engine.DeepBurst = 10
	}
	if cfg.Engine.SentimentThreshold == 0 {
		cfg.Engine.SentimentThreshold = 0.6
	}
	if cfg.Engine.NotifyTimeout == 0 {
		cfg.Engine.NotifyTimeout = 2 * time.Second
	}

	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.8
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 512
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "companion.milestones"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Store.PopulationCacheTTL == 0 {
		cfg.Store.PopulationCacheTTL = 5 * time.Minute
	}
	if cfg.Store.PopulationCacheSize == 0 {
		cfg.Store.PopulationCacheSize = 1024
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.LockTimeout <= 0 {
		return errors.New("server.lock_timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Decay.HalfLifeDays <= 0 {
		return fmt.Errorf("decay.half_life_days must be positive, got %v", c.Decay.HalfLifeDays)
	}

	if !sort.Float64sAreSorted(c.Behavior.Breakpoints) {
		return errors.New("behavior.breakpoints must be ascending")
	}
	for _, bp := range c.Behavior.Breakpoints {
		if bp <= 0 || bp > 1 {
			return fmt.Errorf("behavior breakpoint %v outside (0,1]", bp)
		}
	}
	if c.Behavior.HysteresisMargin < 0 || c.Behavior.HysteresisMargin >= 0.25 {
		return fmt.Errorf("behavior.hysteresis_margin must be in [0,0.25), got %v", c.Behavior.HysteresisMargin)
	}

	if !(c.Bond.WarnedDays < c.Bond.DormantDays && c.Bond.DormantDays < c.Bond.FragileDays) {
		return fmt.Errorf("bond status ladder must be strictly ascending: %v/%v/%v",
			c.Bond.WarnedDays, c.Bond.DormantDays, c.Bond.FragileDays)
	}
	if c.Bond.MaxAffinityStep < 1 || c.Bond.MaxAffinityStep > 10 {
		return fmt.Errorf("bond.max_affinity_step must be 1-10, got %d", c.Bond.MaxAffinityStep)
	}

	if c.Window.ChunkSize < 1 {
		return errors.New("window.chunk_size must be positive")
	}
	for plan, n := range c.Window.Budgets {
		if n < 1 {
			return fmt.Errorf("window budget for %q must be positive, got %d", plan, n)
		}
	}

	if c.Engine.DeepTimeout <= 0 {
		return errors.New("engine.deep_timeout must be positive")
	}
	if c.Engine.DeepRatePerSecond < 0 {
		return errors.New("engine.deep_rate_per_second cannot be negative")
	}
	if c.Engine.SentimentThreshold <= 0 || c.Engine.SentimentThreshold > 1 {
		return fmt.Errorf("engine.sentiment_threshold must be in (0,1], got %v", c.Engine.SentimentThreshold)
	}

	if c.Generation.Enabled && !c.Generation.APIKey.IsSet() {
		return errors.New("generation.api_key required when generation is enabled")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path required for sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	return nil
}
