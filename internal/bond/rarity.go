package bond

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Rarity is a derived classification of a bond against its tier's population.
// It is advisory and always recomputable.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

var rarityCutoffs = []struct {
	min    float64
	rarity Rarity
}{
	{0.95, RarityMythic},
	{0.85, RarityLegendary},
	{0.70, RarityEpic},
	{0.50, RarityRare},
	{0.30, RarityUncommon},
}

// CompositeScore blends affinity and a year-capped duration into [0,1].
func CompositeScore(b Bond) float64 {
	aff := float64(max(0, min(b.Affinity, MaxAffinity))) / MaxAffinity
	dur := math.Min(float64(max(0, b.DurationDays))/365, 1)
	return 0.5*aff + 0.5*dur
}

// Percentile returns the empirical CDF of score within population.
func Percentile(score float64, population []float64) float64 {
	if len(population) == 0 {
		return 0
	}
	sorted := append([]float64(nil), population...)
	sort.Float64s(sorted)
	return stat.CDF(score, stat.Empirical, sorted, nil)
}

// ClassifyRarity ranks b's composite score among the composite scores of
// bonds sharing its tier. An empty population is common.
func (m *Machine) ClassifyRarity(b Bond, population []float64) Rarity {
	if len(population) == 0 {
		return RarityCommon
	}
	return RarityForPercentile(Percentile(CompositeScore(b), population))
}

// RarityForPercentile maps a percentile in [0,1] onto the rarity cutoffs.
func RarityForPercentile(p float64) Rarity {
	for _, c := range rarityCutoffs {
		if p >= c.min {
			return c.rarity
		}
	}
	return RarityCommon
}
