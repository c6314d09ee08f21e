package search

import (
	"sort"

	"github.com/latticehq/lattice/pkg/types"
)

// Fuse merges per-strategy result lists into a single ranking.
//
// Each strategy's scores are min-max normalized to [0,1] independently, then
// weighted and summed per item. A strategy list whose scores are all equal
// keeps the raw score when it holds a single item and normalizes to 1.0
// otherwise, since min-max has no spread to work with. Ordering is fully
// determined by hybrid score with a lexicographic item id tie break, never by
// strategy completion order.
func Fuse(perStrategy map[types.Strategy][]types.SearchableItem, weights map[types.Strategy]float64) []types.HybridResult {
	type accumulated struct {
		content string
		hybrid  float64
		scores  map[types.Strategy]float64
	}
	byItem := make(map[string]*accumulated)

	for _, strategy := range types.AllStrategies {
		items := perStrategy[strategy]
		if len(items) == 0 {
			continue
		}
		weight := weights[strategy]
		normalized := normalizeScores(items)
		for i, item := range items {
			acc, ok := byItem[item.ItemID]
			if !ok {
				acc = &accumulated{
					content: item.Content,
					scores:  make(map[types.Strategy]float64, len(types.AllStrategies)),
				}
				byItem[item.ItemID] = acc
			}
			if acc.content == "" {
				acc.content = item.Content
			}
			weighted := normalized[i] * weight
			acc.hybrid += weighted
			acc.scores[strategy] = weighted
		}
	}

	results := make([]types.HybridResult, 0, len(byItem))
	for itemID, acc := range byItem {
		results = append(results, types.HybridResult{
			ItemID:         itemID,
			Content:        acc.content,
			HybridScore:    acc.hybrid,
			FinalScore:     acc.hybrid,
			StrategyScores: acc.scores,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].HybridScore != results[j].HybridScore {
			return results[i].HybridScore > results[j].HybridScore
		}
		return results[i].ItemID < results[j].ItemID
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// normalizeScores min-max normalizes one strategy's raw scores.
func normalizeScores(items []types.SearchableItem) []float64 {
	minScore, maxScore := items[0].RawScore, items[0].RawScore
	for _, item := range items[1:] {
		if item.RawScore < minScore {
			minScore = item.RawScore
		}
		if item.RawScore > maxScore {
			maxScore = item.RawScore
		}
	}

	normalized := make([]float64, len(items))
	spread := maxScore - minScore
	for i, item := range items {
		switch {
		case spread > 0:
			normalized[i] = (item.RawScore - minScore) / spread
		case len(items) == 1:
			normalized[i] = clamp01(item.RawScore)
		default:
			normalized[i] = 1.0
		}
	}
	return normalized
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
