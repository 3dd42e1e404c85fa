package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/orchestrator"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

var (
	companionID string
	userID      string
)

func init() {
	statusCmd.Flags().StringVar(&companionID, "companion", "", "companion id")
	statusCmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = statusCmd.MarkFlagRequired("companion")

	resetCmd.Flags().StringVar(&companionID, "companion", "", "companion id")
	_ = resetCmd.MarkFlagRequired("companion")
}

// statusCmd prints progression and, with --user, the bond.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a companion's progression and a user's bond",
	Long: `Show a companion's progression state and, when --user is given, the bond
between that companion and user. Reads the configured sqlite store directly.

Examples:
  companiond status --companion luna
  companiond status --companion luna --user u-1`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// resetCmd wipes a companion's behaviors.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a companion's behaviors",
	Long: `Delete every behavior profile of a companion and zero its progression
counters. Bonds are left untouched.

Examples:
  companiond reset --companion luna`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

type statusOutput struct {
	Progression behavior.ProgressionState `json:"progression"`
	Bond        *bond.Bond                `json:"bond,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	orch, closeFn, err := openOffline()
	if err != nil {
		return err
	}
	defer closeFn()

	prog, err := orch.Progression(ctx, companionID)
	if err != nil {
		return fmt.Errorf("load progression: %w", err)
	}
	out := statusOutput{Progression: prog}

	if userID != "" {
		b, err := orch.Bond(ctx, companionID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("no bond between %s and %s", companionID, userID)
		case err != nil:
			return fmt.Errorf("load bond: %w", err)
		}
		out.Bond = &b
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	orch, closeFn, err := openOffline()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := orch.ResetCompanionBehaviors(ctx, companionID); err != nil {
		return fmt.Errorf("reset %s: %w", companionID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset behaviors of %s\n", companionID)
	return nil
}

// openOffline builds an orchestrator over the persistent store without
// starting the server. A memory store would be empty, so it is refused.
func openOffline() (*orchestrator.Orchestrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Driver != config.DriverSQLite {
		return nil, nil, fmt.Errorf("store driver %q holds no state outside a running server; configure sqlite", cfg.Store.Driver)
	}

	logCfg, err := logging.FromSettings("warn", "console")
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts, err := orchestrator.OptionsFromConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	orch, err := orchestrator.New(orchestrator.Deps{Store: st, Logger: logger}, opts...)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	closeFn := func() {
		_ = st.Close()
		_ = logger.Sync()
	}
	return orch, closeFn, nil
}
