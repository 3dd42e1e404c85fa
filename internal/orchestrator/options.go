package orchestrator

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/compression"
	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/decay"
)

// OptionsFromConfig translates the service configuration into options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	ladder := bond.Ladder{
		Warned:  cfg.Bond.WarnedDays,
		Dormant: cfg.Bond.DormantDays,
		Fragile: cfg.Bond.FragileDays,
	}
	if err := ladder.Validate(); err != nil {
		return nil, fmt.Errorf("bond ladder: %w", err)
	}

	opts := []Option{
		WithDecay(decay.New(cfg.Decay.HalfLifeDays)),
		WithBehaviorMachine(behavior.NewMachine(
			behavior.WithBreakpoints(cfg.Behavior.Breakpoints),
			behavior.WithHysteresis(cfg.Behavior.HysteresisMargin),
			behavior.WithMaxTriggers(cfg.Behavior.MaxTriggers),
			behavior.WithJitter(behavior.RandJitter{}),
		)),
		WithBondMachine(bond.NewMachine(
			bond.WithLadder(ladder),
			bond.WithMaxAffinityStep(cfg.Bond.MaxAffinityStep),
		)),
		WithCompressor(compression.NewCompressor(compression.Config{
			ChunkSize:    cfg.Window.ChunkSize,
			TopKeywords:  cfg.Window.TopKeywords,
			ExcerptRunes: cfg.Window.ExcerptRunes,
			Budgets:      cfg.Window.Budgets,
		})),
		WithRouter(NewRouter(DefaultComplexityThreshold, cfg.Engine.SentimentThreshold)),
		WithDeepTimeout(cfg.Engine.DeepTimeout),
	}
	if cfg.Engine.DeepRatePerSecond > 0 {
		opts = append(opts, WithDeepLimiter(rate.NewLimiter(rate.Limit(cfg.Engine.DeepRatePerSecond), max(cfg.Engine.DeepBurst, 1))))
	}
	return opts, nil
}
