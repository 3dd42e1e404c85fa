package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
)

type pairKey struct {
	companionID string
	userID      string
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	profiles    map[string]map[behavior.Type]behavior.Profile
	progression map[string]behavior.ProgressionState
	bonds       map[pairKey]bond.Bond
	commits     int
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:    make(map[string]map[behavior.Type]behavior.Profile),
		progression: make(map[string]behavior.ProgressionState),
		bonds:       make(map[pairKey]bond.Bond),
	}
}

func (m *Memory) LoadProfiles(_ context.Context, companionID string) ([]behavior.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := m.profiles[companionID]
	out := make([]behavior.Profile, 0, len(byType))
	for _, p := range byType {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (m *Memory) LoadProgression(_ context.Context, companionID string) (behavior.ProgressionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.progression[companionID]; ok {
		return s, nil
	}
	return behavior.ProgressionState{CompanionID: companionID}, nil
}

func (m *Memory) GetBond(_ context.Context, companionID, userID string) (bond.Bond, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bonds[pairKey{companionID, userID}]
	if !ok {
		return bond.Bond{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) GetOrCreateBond(ctx context.Context, companionID, userID string) (bond.Bond, bool, error) {
	b, err := m.GetBond(ctx, companionID, userID)
	if errors.Is(err, ErrNotFound) {
		return bond.New(companionID, userID), true, nil
	}
	return b, false, err
}

func (m *Memory) PopulationScores(_ context.Context, tier bond.Tier) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scores []float64
	for _, b := range m.bonds {
		if b.Tier == tier {
			scores = append(scores, bond.CompositeScore(b))
		}
	}
	return scores, nil
}

func (m *Memory) Commit(ctx context.Context, set CommitSet) (CommitResult, error) {
	if err := ctx.Err(); err != nil {
		return CommitResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(set.Profiles) > 0 {
		byType := m.profiles[set.CompanionID]
		if byType == nil {
			byType = make(map[behavior.Type]behavior.Profile)
			m.profiles[set.CompanionID] = byType
		}
		for _, p := range set.Profiles {
			byType[p.Type] = p.Clone()
		}
	}

	prog, ok := m.progression[set.CompanionID]
	if !ok {
		prog = behavior.ProgressionState{CompanionID: set.CompanionID}
	}
	prog.Apply(set.Progression)
	if set.Intensities != nil {
		prog.CurrentIntensities = *set.Intensities
	}
	prog.UpdatedAt = set.At
	m.progression[set.CompanionID] = prog

	res := CommitResult{Progression: prog, Bond: set.Bond}
	if set.Bond.CompanionID != "" {
		key := pairKey{set.Bond.CompanionID, set.Bond.UserID}
		if stored, ok := m.bonds[key]; ok {
			res.Bond, res.BondRegressed = mergeBond(stored, set.Bond)
		}
		m.bonds[key] = res.Bond
	}

	m.commits++
	return res, nil
}

func (m *Memory) ResetBehaviors(_ context.Context, companionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.profiles, companionID)
	if s, ok := m.progression[companionID]; ok {
		s.Zero()
		m.progression[companionID] = s
	}
	return nil
}

// Commits returns how many commits succeeded.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

func (m *Memory) Close() error { return nil }
