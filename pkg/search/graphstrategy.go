package search

import (
	"context"
	"errors"
	"strings"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/types"
)

// GraphTraversalStrategy retrieves items connected to the query's entities
// through the knowledge graph. Each entity that resolves to a node seeds a
// BFS; discovered nodes contribute the items they reference, scored by the
// path's edge weight product attenuated by hop count.
type GraphTraversalStrategy struct {
	corpus *Corpus
	store  *graph.Store
}

// NewGraphTraversalStrategy creates a graph strategy over the given stores.
func NewGraphTraversalStrategy(corpus *Corpus, store *graph.Store) *GraphTraversalStrategy {
	return &GraphTraversalStrategy{corpus: corpus, store: store}
}

func (g *GraphTraversalStrategy) Strategy() types.Strategy { return types.StrategyGraph }

func (g *GraphTraversalStrategy) Execute(ctx context.Context, req *types.SearchRequest, analysis *types.QueryAnalysis) ([]types.SearchableItem, error) {
	startKeys := g.resolveStartNodes(ctx, req, analysis)
	if len(startKeys) == 0 {
		return nil, nil
	}

	maxDepth := graph.DefaultTraversalDepth
	if req.Filters.GraphMaxDepth > 0 {
		maxDepth = req.Filters.GraphMaxDepth
	} else if analysis != nil && analysis.SuggestedDepth > 0 {
		maxDepth = analysis.SuggestedDepth
	}
	opts := types.TraversalOptions{
		Algorithm: types.TraversalBFS,
		MaxDepth:  maxDepth,
	}
	if req.Filters.AtTimestamp != nil {
		opts.AtTimestamp = *req.Filters.AtTimestamp
	}

	bestScores := make(map[string]float64)
	for _, startKey := range startKeys {
		results, err := g.store.Traverse(ctx, req.TenantID, req.ProjectID, startKey, opts)
		if err != nil {
			if errors.Is(err, graph.ErrNodeNotFound) {
				continue
			}
			return nil, err
		}
		for _, r := range results {
			score := r.CumulativeWeight / float64(1+r.Depth)
			if score <= 0 {
				continue
			}
			for _, itemID := range r.Node.Properties[graph.ItemIDsProperty].StringList() {
				if score > bestScores[itemID] {
					bestScores[itemID] = score
				}
			}
		}
	}

	candidates := make([]types.SearchableItem, 0, len(bestScores))
	for itemID, score := range bestScores {
		item := g.corpus.Get(ctx, req.TenantID, req.ProjectID, itemID)
		if item == nil || !itemPassesFilters(item, req.Filters) {
			continue
		}
		candidates = append(candidates, types.SearchableItem{
			ItemID:   itemID,
			Content:  item.Content,
			Source:   types.StrategyGraph,
			RawScore: score,
		})
	}
	return topCandidates(candidates, candidateLimit(req.K)), nil
}

// resolveStartNodes maps analyzer entities to graph node keys, trying the
// entity verbatim and as a lowercase underscore slug. With no resolvable
// entities the query tokens themselves are tried, so the strategy still
// works when analysis is degraded.
func (g *GraphTraversalStrategy) resolveStartNodes(ctx context.Context, req *types.SearchRequest, analysis *types.QueryAnalysis) []string {
	var terms []string
	if analysis != nil {
		terms = append(terms, analysis.Entities...)
		terms = append(terms, analysis.Concepts...)
	}
	if len(terms) == 0 {
		terms = Tokenize(req.Query)
	}

	seen := make(map[string]bool)
	var keys []string
	for _, term := range terms {
		for _, candidate := range []string{term, slugify(term)} {
			if candidate == "" || seen[candidate] {
				continue
			}
			if _, err := g.store.GetNode(ctx, req.TenantID, req.ProjectID, candidate); err == nil {
				seen[candidate] = true
				keys = append(keys, candidate)
			}
		}
	}
	return keys
}

func slugify(term string) string {
	return strings.Join(Tokenize(term), "_")
}
