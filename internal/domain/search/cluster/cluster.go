// Package cluster buckets the distances of one result set into confidence tiers.
package cluster

import (
	"slices"

	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// flatRange is the spread below which a result set is treated as near-homogeneous
// and only split in two.
const flatRange = 0.2

// Thresholds are the upper distance bounds of each tier for one clustering call.
// Medium is zero for a two-tier split.
type Thresholds struct {
	High    float64
	Medium  float64
	TwoTier bool
}

// Classify maps a distance to its tier.
func (t Thresholds) Classify(d float64) result.Category {
	if d <= t.High {
		return result.High
	}
	if t.TwoTier || d > t.Medium {
		return result.Low
	}
	return result.Medium
}

// Compute derives thresholds from a set of distances. ok is false for an empty set.
func Compute(distances []float64) (t Thresholds, ok bool) {
	if len(distances) == 0 {
		return Thresholds{}, false
	}
	sorted := slices.Clone(distances)
	slices.Sort(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	spread := hi - lo

	if len(sorted) <= 2 || spread < flatRange {
		return Thresholds{High: (lo + hi) / 2, TwoTier: true}, true
	}
	third := spread / 3
	return Thresholds{High: lo + third, Medium: lo + 2*third}, true
}

// Cluster annotates every result with its category. The output has the same length
// and order as the input; the input slice and its elements are left untouched.
func Cluster(results []result.Result) []result.Result {
	if len(results) == 0 {
		return []result.Result{}
	}

	distances := make([]float64, len(results))
	for i, r := range results {
		distances[i] = r.Distance()
	}
	t, _ := Compute(distances)

	out := make([]result.Result, len(results))
	for i, r := range results {
		out[i] = r.WithCategory(t.Classify(r.Distance()))
	}
	return out
}

// Counts tallies results per category.
func Counts(results []result.Result) map[result.Category]int {
	counts := make(map[result.Category]int, 3)
	for _, r := range results {
		counts[r.Category()]++
	}
	return counts
}
