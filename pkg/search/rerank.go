package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/latticehq/lattice/pkg/types"
)

const (
	// DefaultRerankTopK is how many fused candidates are sent for
	// re-ranking.
	DefaultRerankTopK = 20

	// rerankSnippetLength caps the content snippet shipped per candidate.
	rerankSnippetLength = 200

	rerankBlendWeight = 0.7
	hybridBlendWeight = 0.3
)

// Reranker is the external collaborator that re-scores candidates against
// the query. Implementations live in pkg/nlp.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []types.RerankCandidate) ([]types.RankedCandidate, error)
}

// RerankStage blends collaborator scores into the fused ranking. The stage
// is strictly best-effort: with no reranker configured, or when the
// collaborator errors, the fused ordering passes through untouched.
type RerankStage struct {
	reranker Reranker
	topK     int
	logger   *slog.Logger
}

// NewRerankStage creates a rerank stage. A nil reranker yields a permanent
// passthrough.
func NewRerankStage(reranker Reranker, topK int, logger *slog.Logger) *RerankStage {
	if topK <= 0 {
		topK = DefaultRerankTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RerankStage{reranker: reranker, topK: topK, logger: logger}
}

// Apply re-scores up to topK results and re-sorts by the blended score
// 0.7*rerank + 0.3*hybrid. Results beyond topK, and results the collaborator
// did not score, keep their hybrid score. The returned flag reports whether
// re-ranking actually happened.
func (r *RerankStage) Apply(ctx context.Context, query string, results []types.HybridResult) ([]types.HybridResult, bool) {
	if r.reranker == nil || len(results) == 0 {
		return results, false
	}

	limit := r.topK
	if limit > len(results) {
		limit = len(results)
	}
	candidates := make([]types.RerankCandidate, limit)
	for i := 0; i < limit; i++ {
		candidates[i] = types.RerankCandidate{
			ItemID:  results[i].ItemID,
			Snippet: snippet(results[i].Content),
		}
	}

	ranked, err := r.reranker.Score(ctx, query, candidates)
	if err != nil {
		r.logger.Warn("reranker unavailable, keeping fused ordering", "error", err)
		return results, false
	}
	scores := make(map[string]float64, len(ranked))
	for _, rc := range ranked {
		scores[rc.ItemID] = rc.Score
	}

	for i := range results {
		if score, ok := scores[results[i].ItemID]; ok {
			s := score
			results[i].RerankScore = &s
			results[i].FinalScore = rerankBlendWeight*s + hybridBlendWeight*results[i].HybridScore
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].ItemID < results[j].ItemID
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, true
}

func snippet(content string) string {
	if len(content) <= rerankSnippetLength {
		return content
	}
	cut := content[:rerankSnippetLength]
	// Avoid splitting a multi-byte rune at the boundary.
	for len(cut) > 0 && cut[len(cut)-1] >= 0x80 && cut[len(cut)-1] < 0xC0 {
		cut = cut[:len(cut)-1]
	}
	if len(cut) > 0 && cut[len(cut)-1] >= 0xC0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
