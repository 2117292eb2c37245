package retrieval

import (
	"github.com/kailas-cloud/mmdex/internal/domain/search/cluster"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// dedupe collapses results that point at the same fragment. The first
// occurrence keeps its position and takes the smallest distance seen.
func dedupe(results []result.Result) []result.Result {
	index := make(map[string]int, len(results))
	out := make([]result.Result, 0, len(results))

	for _, r := range results {
		key := r.Key()
		if i, ok := index[key]; ok {
			if r.Distance() < out[i].Distance() {
				out[i] = out[i].WithDistance(r.Distance())
			}
			continue
		}
		index[key] = len(out)
		out = append(out, r.WithCategory(result.Unclustered))
	}
	return out
}

// Merge combines two independently scored result sets and clusters the union.
// Thresholds from the inputs are never reused.
func Merge(a, b []result.Result) []result.Result {
	all := make([]result.Result, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return cluster.Cluster(dedupe(all))
}
