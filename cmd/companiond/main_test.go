package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/companiond/internal/config"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/orchestrator"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	companionID, userID, configPath = "", "", ""
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "status", "reset", "version"})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "companiond by Fyrsmith Labs")
	assert.Contains(t, out, "Version:    dev")
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	st, err := openStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)

	cfg.Store.Driver = "postgres"
	_, err = openStore(cfg)
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestStatus_RefusesMemoryStore(t *testing.T) {
	_, err := execute(t, "status", "--companion", "luna")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure sqlite")
}

func TestStatusAndReset_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companiond.db")
	t.Setenv("COMPANIOND_STORE_DRIVER", "sqlite")
	t.Setenv("COMPANIOND_STORE_PATH", path)

	st, err := store.OpenSQLite(path)
	require.NoError(t, err)
	orch, err := orchestrator.New(orchestrator.Deps{Store: st, Logger: logging.NewNop()})
	require.NoError(t, err)
	_, err = orch.ProcessMessage(context.Background(), orchestrator.Request{
		CompanionID: "luna", UserID: "u-1", Message: "good morning",
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "status", "--companion", "luna", "--user", "u-1")
	require.NoError(t, err)

	var status struct {
		Progression struct {
			TotalInteractions uint64 `json:"total_interactions"`
		} `json:"progression"`
		Bond struct {
			TotalInteractions uint64 `json:"total_interactions"`
		} `json:"bond"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, uint64(1), status.Progression.TotalInteractions)
	assert.Equal(t, uint64(1), status.Bond.TotalInteractions)

	out, err = execute(t, "reset", "--companion", "luna")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset behaviors of luna")

	out, err = execute(t, "status", "--companion", "luna", "--user", "u-1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Zero(t, status.Progression.TotalInteractions)
	assert.Equal(t, uint64(1), status.Bond.TotalInteractions, "bonds survive a reset")
}

func TestStatus_UnknownBond(t *testing.T) {
	t.Setenv("COMPANIOND_STORE_DRIVER", "sqlite")
	t.Setenv("COMPANIOND_STORE_PATH", filepath.Join(t.TempDir(), "companiond.db"))

	_, err := execute(t, "status", "--companion", "luna", "--user", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bond")
}
