package search

import (
	"context"
	"sort"

	"github.com/latticehq/lattice/pkg/types"
)

// Executor is the common contract of the four retrieval strategies. Execute
// returns candidate items with raw scores in [0,1]. Executors hold no shared
// mutable state beyond read access to the stores, so the orchestrator may run
// them concurrently.
type Executor interface {
	Strategy() types.Strategy
	Execute(ctx context.Context, req *types.SearchRequest, analysis *types.QueryAnalysis) ([]types.SearchableItem, error)
}

// Embedder converts text into a dense vector. Implemented by the embedding
// providers in pkg/embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// candidateLimit bounds how many candidates each strategy hands to fusion.
// Fusion sees more than the final k so low-raw-score items that multiple
// strategies agree on can still surface.
func candidateLimit(k int) int {
	if k <= 0 {
		k = 10
	}
	return k * 3
}

// topCandidates sorts scored items descending with an item id tie break and
// truncates to the limit.
func topCandidates(items []types.SearchableItem, limit int) []types.SearchableItem {
	sortCandidates(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func sortCandidates(items []types.SearchableItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RawScore != items[j].RawScore {
			return items[i].RawScore > items[j].RawScore
		}
		return items[i].ItemID < items[j].ItemID
	})
}
