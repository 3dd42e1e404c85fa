// Package bond tracks the relationship between one companion and one user:
// its tier, affinity, counters, time-decayed status and derived rarity.
package bond

import (
	"errors"
	"fmt"
)

// Tier is a relationship archetype. Tiers only ever upgrade.
type Tier string

const (
	TierAcquaintance       Tier = "acquaintance"
	TierConfidant          Tier = "confidant"
	TierAdventureCompanion Tier = "adventure_companion"
	TierCreativePartner    Tier = "creative_partner"
	TierMentor             Tier = "mentor"
	TierBestFriend         Tier = "best_friend"
	TierRomantic           Tier = "romantic"
)

// ErrUnknownTier is returned by ParseTier for values outside the closed set.
var ErrUnknownTier = errors.New("unknown bond tier")

// Requirement is the threshold triple a bond must meet to enter a tier.
type Requirement struct {
	MinAffinity     int
	MinDays         int
	MinInteractions uint64
}

// Met reports whether b satisfies every threshold.
func (r Requirement) Met(b *Bond) bool {
	return b.Affinity >= r.MinAffinity &&
		b.DurationDays >= r.MinDays &&
		b.TotalInteractions >= r.MinInteractions
}

type tierInfo struct {
	rank       int
	req        Requirement
	successors []Tier
}

// Successors are listed in preference order; the first one whose
// requirement is met wins.
var tiers = map[Tier]tierInfo{
	TierAcquaintance: {
		rank:       0,
		req:        Requirement{MinAffinity: 20, MinDays: 3, MinInteractions: 10},
		successors: []Tier{TierConfidant, TierAdventureCompanion},
	},
	TierConfidant: {
		rank:       1,
		req:        Requirement{MinAffinity: 50, MinDays: 10, MinInteractions: 30},
		successors: []Tier{TierMentor, TierCreativePartner},
	},
	TierAdventureCompanion: {
		rank:       1,
		req:        Requirement{MinAffinity: 50, MinDays: 10, MinInteractions: 25},
		successors: []Tier{TierCreativePartner},
	},
	TierCreativePartner: {
		rank:       2,
		req:        Requirement{MinAffinity: 55, MinDays: 12, MinInteractions: 35},
		successors: []Tier{TierBestFriend},
	},
	TierMentor: {
		rank:       2,
		req:        Requirement{MinAffinity: 60, MinDays: 15, MinInteractions: 40},
		successors: []Tier{TierBestFriend},
	},
	TierBestFriend: {
		rank:       3,
		req:        Requirement{MinAffinity: 70, MinDays: 20, MinInteractions: 60},
		successors: []Tier{TierRomantic},
	},
	TierRomantic: {
		rank: 4,
		req:  Requirement{MinAffinity: 80, MinDays: 30, MinInteractions: 100},
	},
}

// AllTiers returns every tier, lowest rank first.
func AllTiers() []Tier {
	return []Tier{
		TierAcquaintance, TierConfidant, TierAdventureCompanion,
		TierCreativePartner, TierMentor, TierBestFriend, TierRomantic,
	}
}

// ParseTier validates s as a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Valid reports whether t is in the closed set.
func (t Tier) Valid() bool {
	_, ok := tiers[t]
	return ok
}

// Rank is the depth of t in the upgrade graph. Unknown tiers rank -1.
func (t Tier) Rank() int {
	info, ok := tiers[t]
	if !ok {
		return -1
	}
	return info.rank
}

// Requirement returns the entry thresholds of t.
func (t Tier) Requirement() Requirement {
	return tiers[t].req
}

// Successors returns the tiers reachable from t in one upgrade.
func (t Tier) Successors() []Tier {
	return append([]Tier(nil), tiers[t].successors...)
}

// Above reports whether t sits strictly above o in the upgrade graph, that is
// o can reach t through successors.
func (t Tier) Above(o Tier) bool {
	for _, next := range tiers[o].successors {
		if next == t || t.Above(next) {
			return true
		}
	}
	return false
}
