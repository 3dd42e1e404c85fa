package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
)

const schema = `
CREATE TABLE IF NOT EXISTS behavior_profiles (
	companion_id  TEXT NOT NULL,
	behavior_type TEXT NOT NULL,
	data          TEXT NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (companion_id, behavior_type)
);

CREATE TABLE IF NOT EXISTS progression (
	companion_id TEXT PRIMARY KEY,
	total        INTEGER NOT NULL DEFAULT 0,
	positive     INTEGER NOT NULL DEFAULT 0,
	negative     INTEGER NOT NULL DEFAULT 0,
	intensities  TEXT NOT NULL DEFAULT '{}',
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bonds (
	companion_id       TEXT NOT NULL,
	user_id            TEXT NOT NULL,
	tier               TEXT NOT NULL,
	affinity           INTEGER NOT NULL,
	rarity             TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	total_interactions INTEGER NOT NULL,
	duration_days      INTEGER NOT NULL,
	first_at           INTEGER NOT NULL,
	last_at            INTEGER NOT NULL,
	PRIMARY KEY (companion_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_bonds_tier ON bonds(tier);
`

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of the commit path.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) LoadProfiles(ctx context.Context, companionID string) ([]behavior.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM behavior_profiles WHERE companion_id = ? ORDER BY behavior_type`, companionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var out []behavior.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		var p behavior.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) LoadProgression(ctx context.Context, companionID string) (behavior.ProgressionState, error) {
	return loadProgression(ctx, s.db, companionID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadProgression(ctx context.Context, q queryer, companionID string) (behavior.ProgressionState, error) {
	state := behavior.ProgressionState{CompanionID: companionID}
	var (
		intensities string
		updated     int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT total, positive, negative, intensities, updated_at FROM progression WHERE companion_id = ?`,
		companionID,
	).Scan(&state.TotalInteractions, &state.PositiveInteractions, &state.NegativeInteractions, &intensities, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("failed to load progression: %w", err)
	}
	if err := json.Unmarshal([]byte(intensities), &state.CurrentIntensities); err != nil {
		return state, fmt.Errorf("failed to decode intensities: %w", err)
	}
	state.UpdatedAt = fromUnix(updated)
	return state, nil
}

func (s *SQLite) GetBond(ctx context.Context, companionID, userID string) (bond.Bond, error) {
	return getBond(ctx, s.db, companionID, userID)
}

func getBond(ctx context.Context, q queryer, companionID, userID string) (bond.Bond, error) {
	b := bond.Bond{CompanionID: companionID, UserID: userID}
	var first, last int64
	err := q.QueryRowContext(ctx, `
		SELECT tier, affinity, rarity, status, total_interactions, duration_days, first_at, last_at
		FROM bonds WHERE companion_id = ? AND user_id = ?`, companionID, userID,
	).Scan(&b.Tier, &b.Affinity, &b.Rarity, &b.Status, &b.TotalInteractions, &b.DurationDays, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return bond.Bond{}, ErrNotFound
	}
	if err != nil {
		return bond.Bond{}, fmt.Errorf("failed to load bond: %w", err)
	}
	b.FirstInteractionAt, b.LastInteractionAt = fromUnix(first), fromUnix(last)
	return b, nil
}

func (s *SQLite) GetOrCreateBond(ctx context.Context, companionID, userID string) (bond.Bond, bool, error) {
	b, err := s.GetBond(ctx, companionID, userID)
	if errors.Is(err, ErrNotFound) {
		return bond.New(companionID, userID), true, nil
	}
	return b, false, err
}

func (s *SQLite) PopulationScores(ctx context.Context, tier bond.Tier) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT affinity, duration_days FROM bonds WHERE tier = ?`, string(tier))
	if err != nil {
		return nil, fmt.Errorf("failed to query population: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var b bond.Bond
		if err := rows.Scan(&b.Affinity, &b.DurationDays); err != nil {
			return nil, fmt.Errorf("failed to scan population row: %w", err)
		}
		scores = append(scores, bond.CompositeScore(b))
	}
	return scores, rows.Err()
}

func (s *SQLite) Commit(ctx context.Context, set CommitSet) (CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	at := toUnix(set.At)

	for _, p := range set.Profiles {
		data, err := json.Marshal(p)
		if err != nil {
			return CommitResult{}, fmt.Errorf("failed to encode profile: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO behavior_profiles (companion_id, behavior_type, data, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (companion_id, behavior_type)
			DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			set.CompanionID, p.Type.String(), string(data), at); err != nil {
			return CommitResult{}, fmt.Errorf("failed to upsert profile %s: %w", p.Type, err)
		}
	}

	var intensities sql.NullString
	if set.Intensities != nil {
		data, err := json.Marshal(set.Intensities)
		if err != nil {
			return CommitResult{}, fmt.Errorf("failed to encode intensities: %w", err)
		}
		intensities = sql.NullString{String: string(data), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO progression (companion_id, total, positive, negative, intensities, updated_at)
		VALUES (?, ?, ?, ?, COALESCE(?, '{}'), ?)
		ON CONFLICT (companion_id) DO UPDATE SET
			total       = progression.total + excluded.total,
			positive    = progression.positive + excluded.positive,
			negative    = progression.negative + excluded.negative,
			intensities = COALESCE(?, progression.intensities),
			updated_at  = excluded.updated_at`,
		set.CompanionID, set.Progression.Total, set.Progression.Positive, set.Progression.Negative,
		intensities, at, intensities); err != nil {
		return CommitResult{}, fmt.Errorf("failed to apply progression delta: %w", err)
	}

	res := CommitResult{Bond: set.Bond}
	if set.Bond.CompanionID != "" {
		stored, err := getBond(ctx, tx, set.Bond.CompanionID, set.Bond.UserID)
		switch {
		case err == nil:
			res.Bond, res.BondRegressed = mergeBond(stored, set.Bond)
		case !errors.Is(err, ErrNotFound):
			return CommitResult{}, err
		}
		b := res.Bond
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bonds (companion_id, user_id, tier, affinity, rarity, status,
				total_interactions, duration_days, first_at, last_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (companion_id, user_id) DO UPDATE SET
				tier = excluded.tier, affinity = excluded.affinity, rarity = excluded.rarity,
				status = excluded.status, total_interactions = excluded.total_interactions,
				duration_days = excluded.duration_days, first_at = excluded.first_at,
				last_at = excluded.last_at`,
			b.CompanionID, b.UserID, string(b.Tier), b.Affinity, string(b.Rarity), string(b.Status),
			b.TotalInteractions, b.DurationDays, toUnix(b.FirstInteractionAt), toUnix(b.LastInteractionAt),
		); err != nil {
			return CommitResult{}, fmt.Errorf("failed to upsert bond: %w", err)
		}
	}

	prog, err := loadProgression(ctx, tx, set.CompanionID)
	if err != nil {
		return CommitResult{}, err
	}
	res.Progression = prog

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit: %w", err)
	}
	return res, nil
}

func (s *SQLite) ResetBehaviors(ctx context.Context, companionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM behavior_profiles WHERE companion_id = ?`, companionID); err != nil {
		return fmt.Errorf("failed to delete profiles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE progression SET total = 0, positive = 0, negative = 0, intensities = '{}'
		WHERE companion_id = ?`, companionID); err != nil {
		return fmt.Errorf("failed to zero progression: %w", err)
	}
	return tx.Commit()
}

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error { return s.db.Close() }

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
