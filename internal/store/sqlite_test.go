package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "companiond.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store { return openTestSQLite(t) })
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companiond.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	b := bond.New("c1", "u1")
	b.Affinity, b.TotalInteractions = 7, 3
	_, err = s.Commit(ctx, CommitSet{CompanionID: "c1", UserID: "u1", Bond: b, Progression: behavior.Delta{Total: 3}, At: commitAt})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetBond(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Affinity)
	assert.Equal(t, uint64(3), got.TotalInteractions)
	assert.Equal(t, path, s.Path())

	prog, err := s.LoadProgression(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), prog.TotalInteractions)
}

func TestSQLite_CancelledCommitRollsBack(t *testing.T) {
	s := openTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Commit(ctx, CommitSet{CompanionID: "c1", Progression: behavior.DeltaFor(behavior.Positive), At: commitAt})
	require.Error(t, err)

	prog, err := s.LoadProgression(context.Background(), "c1")
	require.NoError(t, err)
	assert.Zero(t, prog.TotalInteractions)
}
