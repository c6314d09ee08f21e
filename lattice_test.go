package lattice_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lattice "github.com/latticehq/lattice"
	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/search"
	"github.com/latticehq/lattice/pkg/types"
)

// countingEmbedder returns fixed vectors and counts calls so cache tests can
// prove strategies did not re-run.
type countingEmbedder struct {
	calls   atomic.Int64
	vectors map[string][]float32
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = c.lookup(text)
	}
	return out, nil
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.lookup(text), nil
}

func (c *countingEmbedder) lookup(text string) []float32 {
	if vec, ok := c.vectors[text]; ok {
		return vec
	}
	return []float32{1, 0, 0}
}

func (c *countingEmbedder) Dimensions() int { return 3 }
func (c *countingEmbedder) Close() error    { return nil }

type fixedReranker struct {
	scores map[string]float64
	err    error
}

func (f *fixedReranker) Score(_ context.Context, _ string, candidates []types.RerankCandidate) ([]types.RankedCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ranked []types.RankedCandidate
	for _, c := range candidates {
		if score, ok := f.scores[c.ItemID]; ok {
			ranked = append(ranked, types.RankedCandidate{ItemID: c.ItemID, Score: score})
		}
	}
	return ranked, nil
}

func seedEngine(t *testing.T, opts ...lattice.Option) *lattice.Engine {
	t.Helper()
	e := lattice.NewEngine(opts...)
	ctx := context.Background()

	items := []*search.Item{
		{ItemID: "redis-eviction", TenantID: "acme", ProjectID: "docs",
			Content:  "Redis evicts keys according to the configured maxmemory policy",
			Concepts: []string{"caching", "eviction"}, Tags: []string{"redis"}},
		{ItemID: "lru-overview", TenantID: "acme", ProjectID: "docs",
			Content:  "LRU caching keeps recently used entries and discards stale ones",
			Concepts: []string{"caching"}, Tags: []string{"lru"}},
		{ItemID: "tcp-notes", TenantID: "acme", ProjectID: "docs",
			Content:  "TCP retransmission timers govern reliability",
			Concepts: []string{"networking"}},
	}
	for _, item := range items {
		require.NoError(t, e.UpsertItem(ctx, item))
	}
	return e
}

func TestSearchEndToEndHeuristic(t *testing.T) {
	e := seedEngine(t)
	defer e.Close()

	resp, err := e.Search(context.Background(), &types.SearchRequest{
		TenantID:  "acme",
		ProjectID: "docs",
		Query:     "redis eviction policy",
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "redis-eviction", resp.Results[0].ItemID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.False(t, resp.CacheHit)
	assert.NotNil(t, resp.Analysis)
	assert.NotEmpty(t, resp.AppliedWeights)

	// Without an embedder the vector strategy degrades and is reported.
	assert.Contains(t, resp.SkippedStrategies, types.StrategyVector)
}

func TestSearchValidation(t *testing.T) {
	e := lattice.NewEngine()
	defer e.Close()
	ctx := context.Background()

	_, err := e.Search(ctx, &types.SearchRequest{TenantID: "a", ProjectID: "b", Query: "   "})
	assert.ErrorIs(t, err, lattice.ErrEmptyQuery)

	_, err = e.Search(ctx, &types.SearchRequest{Query: "hello"})
	assert.ErrorIs(t, err, lattice.ErrMissingTenant)
}

func TestSearchCacheHitSkipsStrategies(t *testing.T) {
	emb := &countingEmbedder{}
	e := seedEngine(t, lattice.WithEmbedder(emb))
	defer e.Close()
	ctx := context.Background()

	req := &types.SearchRequest{TenantID: "acme", ProjectID: "docs", Query: "caching"}
	first, err := e.Search(ctx, req)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	callsAfterFirst := emb.calls.Load()

	second, err := e.Search(ctx, &types.SearchRequest{TenantID: "acme", ProjectID: "docs", Query: "caching"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, callsAfterFirst, emb.calls.Load(), "cached search must not re-run strategies")

	stats := e.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestSearchBypassCache(t *testing.T) {
	emb := &countingEmbedder{}
	e := seedEngine(t, lattice.WithEmbedder(emb))
	defer e.Close()
	ctx := context.Background()

	req := &types.SearchRequest{TenantID: "acme", ProjectID: "docs", Query: "caching", BypassCache: true}
	_, err := e.Search(ctx, req)
	require.NoError(t, err)
	before := emb.calls.Load()

	resp, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Greater(t, emb.calls.Load(), before)
}

func TestSearchManualWeights(t *testing.T) {
	e := seedEngine(t)
	defer e.Close()

	manual := map[types.Strategy]float64{
		types.StrategyVector:  0,
		types.StrategyConcept: 0,
		types.StrategyGraph:   0,
		types.StrategyLexical: 1,
	}
	resp, err := e.Search(context.Background(), &types.SearchRequest{
		TenantID:      "acme",
		ProjectID:     "docs",
		Query:         "retransmission reliability",
		ManualWeights: manual,
		BypassCache:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, manual, resp.AppliedWeights)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "tcp-notes", resp.Results[0].ItemID)
}

func TestSearchRerankBlending(t *testing.T) {
	reranker := &fixedReranker{scores: map[string]float64{
		"lru-overview":   1.0,
		"redis-eviction": 0.1,
	}}
	e := seedEngine(t, lattice.WithReranker(reranker, 20))
	defer e.Close()

	resp, err := e.Search(context.Background(), &types.SearchRequest{
		TenantID:     "acme",
		ProjectID:    "docs",
		Query:        "caching eviction",
		EnableRerank: true,
		BypassCache:  true,
	})
	require.NoError(t, err)
	assert.True(t, resp.RerankUsed)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "lru-overview", resp.Results[0].ItemID)
	require.NotNil(t, resp.Results[0].RerankScore)
}

func TestSearchRerankErrorPassthrough(t *testing.T) {
	reranker := &fixedReranker{err: errors.New("collaborator down")}
	e := seedEngine(t, lattice.WithReranker(reranker, 20))
	defer e.Close()

	resp, err := e.Search(context.Background(), &types.SearchRequest{
		TenantID:     "acme",
		ProjectID:    "docs",
		Query:        "caching eviction",
		EnableRerank: true,
		BypassCache:  true,
	})
	require.NoError(t, err)
	assert.False(t, resp.RerankUsed)
	assert.NotEmpty(t, resp.Results)
}

func TestSearchStrategySubset(t *testing.T) {
	e := seedEngine(t)
	defer e.Close()

	resp, err := e.Search(context.Background(), &types.SearchRequest{
		TenantID:    "acme",
		ProjectID:   "docs",
		Query:       "caching",
		Strategies:  []types.Strategy{types.StrategyLexical},
		BypassCache: true,
	})
	require.NoError(t, err)
	assert.Len(t, resp.StrategyCounts, 1)
	assert.NotContains(t, resp.SkippedStrategies, types.StrategyVector)
}

func TestUpsertItemEmbedsAndLinksConcepts(t *testing.T) {
	emb := &countingEmbedder{}
	e := lattice.NewEngine(lattice.WithEmbedder(emb))
	defer e.Close()
	ctx := context.Background()

	_, err := e.Graph().AddNode(ctx, "acme", "docs", "caching", "Concept", nil)
	require.NoError(t, err)

	require.NoError(t, e.UpsertItem(ctx, &search.Item{
		ItemID: "doc-1", TenantID: "acme", ProjectID: "docs",
		Content: "cache notes", Concepts: []string{"Caching"},
	}))

	item, err := e.GetItem(ctx, "acme", "docs", "doc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, item.Embedding)

	node, err := e.Graph().GetNode(ctx, "acme", "docs", "caching")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, node.Properties[graph.ItemIDsProperty].StringList())
}

func TestDeleteItemDropsFromResults(t *testing.T) {
	e := seedEngine(t)
	defer e.Close()
	ctx := context.Background()

	e.DeleteItem(ctx, "acme", "docs", "tcp-notes")
	_, err := e.GetItem(ctx, "acme", "docs", "tcp-notes")
	assert.ErrorIs(t, err, lattice.ErrItemNotFound)
	assert.Equal(t, 2, e.ItemCount(ctx, "acme", "docs"))
}

func TestGraphTraversalFeedsSearch(t *testing.T) {
	e := seedEngine(t)
	defer e.Close()
	ctx := context.Background()

	g := e.Graph()
	_, err := g.AddNode(ctx, "acme", "docs", "redis", "Tech", nil)
	require.NoError(t, err)
	_, err = g.AddNode(ctx, "acme", "docs", "eviction", "Concept", nil)
	require.NoError(t, err)
	_, err = g.LinkItems(ctx, "acme", "docs", "eviction", "redis-eviction")
	require.NoError(t, err)
	_, err = g.AddEdge(ctx, "acme", "docs", graph.EdgeSpec{
		SourceKey: "redis", TargetKey: "eviction",
		Relation: "relates_to", Weight: 0.9, Confidence: 0.9,
	})
	require.NoError(t, err)

	resp, err := e.Search(ctx, &types.SearchRequest{
		TenantID:    "acme",
		ProjectID:   "docs",
		Query:       "Redis internals",
		Strategies:  []types.Strategy{types.StrategyGraph},
		BypassCache: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "redis-eviction", resp.Results[0].ItemID)
}
