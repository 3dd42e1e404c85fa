package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/generation"
	httpserver "github.com/fyrsmithlabs/companiond/internal/http"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/notify"
	"github.com/fyrsmithlabs/companiond/internal/orchestrator"
	"github.com/fyrsmithlabs/companiond/internal/pairlock"
	"github.com/fyrsmithlabs/companiond/internal/store"
	"github.com/fyrsmithlabs/companiond/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the companiond HTTP server",
	Long: `Start the companiond HTTP server.

Configuration is read from the YAML file given by --config, then overridden by
COMPANIOND_* environment variables.

Examples:
  # Start with defaults (memory store, generation disabled)
  companiond serve

  # Persist to sqlite and publish milestones to NATS
  COMPANIOND_STORE_DRIVER=sqlite COMPANIOND_NATS_ENABLED=true companiond serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

// run starts companiond and blocks until ctx is cancelled.
//
// This function initializes all dependencies:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger
//  3. Opens the store and connects the milestone sink
//  4. Builds the orchestrator and HTTP server
//  5. Performs graceful shutdown on context cancellation
func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	if health := tel.Health(); health.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", health.Reasons))
	}

	logger.Info(ctx, "starting companiond",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("generation", cfg.Generation.Enabled),
		logging.Secret("generation.api_key", cfg.Generation.APIKey),
		zap.Bool("nats", cfg.NATS.Enabled))

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close(logger)

	opts, err := orchestrator.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	opts = append(opts, orchestrator.WithTelemetry(tel))

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:     deps.store,
		Generator: deps.generator,
		Notifier:  deps.notifier,
		Logger:    logger,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	srv, err := httpserver.NewServer(orch, pairlock.New(), logger, &httpserver.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		LockTimeout: cfg.Server.LockTimeout,
		Version:     version,
		Meter:       tel.Meter("github.com/fyrsmithlabs/companiond/internal/http"),
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown failed", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
	}
	logger.Info(shutdownCtx, "shutdown complete")
	return nil
}

// loadConfig reads the config file named by --config, or the default path.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the service logger, bridged to OTEL when telemetry
// exposes a logger provider.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	lp := tel.LoggerProvider()
	logCfg.Output.OTEL = lp != nil
	logCfg.Fields = map[string]string{"service": cfg.Observability.ServiceName}
	return logging.NewLogger(logCfg, lp)
}

// dependencies holds the infrastructure the orchestrator runs on.
type dependencies struct {
	store     store.Store
	generator generation.Generator
	notifier  *notify.Async
	nc        *nats.Conn
}

// initDependencies opens the store, the generation client and the milestone
// sink.
func initDependencies(cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	deps.store = store.NewPopulationCache(st, cfg.Store.PopulationCacheSize, cfg.Store.PopulationCacheTTL)

	if cfg.Generation.Enabled {
		llm, err := generation.NewLLM(generation.Config{
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			APIKey:      cfg.Generation.APIKey.Value(),
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		deps.generator = llm
	}

	var sink notify.Sink = notify.NewLog(logger)
	if cfg.NATS.Enabled {
		nc, err := notify.Connect(cfg.NATS.URL)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		deps.nc = nc
		sink = notify.NewNATS(nc, cfg.NATS.SubjectPrefix)
	}
	deps.notifier = notify.NewAsync(sink, cfg.Engine.NotifyTimeout, logger)

	return deps, nil
}

// openStore opens the configured persistence backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		st, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case config.DriverMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close drains pending notifications, then releases connections.
func (d *dependencies) Close(logger *logging.Logger) {
	ctx := context.Background()
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			logger.Warn(ctx, "notifier close failed", zap.Error(err))
		}
	}
	if d.nc != nil {
		if err := d.nc.Drain(); err != nil {
			logger.Warn(ctx, "nats drain failed", zap.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.Warn(ctx, "store close failed", zap.Error(err))
		}
	}
}
