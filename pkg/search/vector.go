package search

import (
	"context"
	"fmt"

	"github.com/latticehq/lattice/pkg/types"
	"github.com/latticehq/lattice/pkg/utils"
)

// VectorStrategy scores items by cosine similarity between the query
// embedding and each item's stored embedding. Similarity is mapped from
// [-1,1] into [0,1] so fusion sees bounded scores.
type VectorStrategy struct {
	corpus   *Corpus
	embedder Embedder
}

// NewVectorStrategy creates a vector strategy over the given corpus.
func NewVectorStrategy(corpus *Corpus, embedder Embedder) *VectorStrategy {
	return &VectorStrategy{corpus: corpus, embedder: embedder}
}

func (v *VectorStrategy) Strategy() types.Strategy { return types.StrategyVector }

func (v *VectorStrategy) Execute(ctx context.Context, req *types.SearchRequest, _ *types.QueryAnalysis) ([]types.SearchableItem, error) {
	if v.embedder == nil {
		return nil, fmt.Errorf("vector strategy: no embedder configured")
	}
	queryVec, err := v.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("vector strategy: embedding query: %w", err)
	}
	if utils.Magnitude(queryVec) == 0 {
		return nil, fmt.Errorf("vector strategy: query embedding has zero magnitude")
	}

	var candidates []types.SearchableItem
	for _, item := range v.corpus.Snapshot(ctx, req.TenantID, req.ProjectID, req.Filters) {
		if len(item.Embedding) != len(queryVec) || utils.Magnitude(item.Embedding) == 0 {
			continue
		}
		score := (utils.CosineSimilarity(queryVec, item.Embedding) + 1) / 2
		if score <= 0 {
			continue
		}
		candidates = append(candidates, types.SearchableItem{
			ItemID:   item.ItemID,
			Content:  item.Content,
			Source:   types.StrategyVector,
			RawScore: score,
		})
	}
	return topCandidates(candidates, candidateLimit(req.K)), nil
}
