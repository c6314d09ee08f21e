package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/types"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func seedCorpus(t *testing.T, items ...*Item) *Corpus {
	t.Helper()
	corpus := NewCorpus()
	for _, item := range items {
		item.TenantID = "t"
		item.ProjectID = "p"
		corpus.Upsert(context.Background(), item)
	}
	return corpus
}

func testRequest(query string) *types.SearchRequest {
	return &types.SearchRequest{TenantID: "t", ProjectID: "p", Query: query, K: 10}
}

func TestVectorStrategyRanksBySimilarity(t *testing.T) {
	corpus := seedCorpus(t,
		&Item{ItemID: "aligned", Content: "a", Embedding: []float32{1, 0, 0}},
		&Item{ItemID: "orthogonal", Content: "b", Embedding: []float32{0, 1, 0}},
		&Item{ItemID: "no-embedding", Content: "c"},
	)
	strategy := NewVectorStrategy(corpus, &stubEmbedder{})

	items, err := strategy.Execute(context.Background(), testRequest("query"), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "aligned", items[0].ItemID)
	assert.InDelta(t, 1.0, items[0].RawScore, 1e-6)
	assert.Equal(t, "orthogonal", items[1].ItemID)
	assert.InDelta(t, 0.5, items[1].RawScore, 1e-6)
}

func TestVectorStrategyEmbedderFailure(t *testing.T) {
	corpus := seedCorpus(t, &Item{ItemID: "x", Embedding: []float32{1, 0, 0}})
	strategy := NewVectorStrategy(corpus, &stubEmbedder{err: assert.AnError})

	_, err := strategy.Execute(context.Background(), testRequest("query"), nil)
	assert.Error(t, err)
}

func TestLexicalStrategyTermMatching(t *testing.T) {
	corpus := seedCorpus(t,
		&Item{ItemID: "full", Content: "the deploy pipeline broke during the deploy"},
		&Item{ItemID: "partial", Content: "the pipeline is healthy"},
		&Item{ItemID: "none", Content: "unrelated text entirely"},
	)
	strategy := NewLexicalStrategy(corpus)

	items, err := strategy.Execute(context.Background(), testRequest("deploy pipeline"), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "full", items[0].ItemID)
	assert.Equal(t, "partial", items[1].ItemID)
	assert.Greater(t, items[0].RawScore, items[1].RawScore)
}

func TestLexicalStrategyEmptyQuery(t *testing.T) {
	corpus := seedCorpus(t, &Item{ItemID: "x", Content: "text"})
	strategy := NewLexicalStrategy(corpus)

	items, err := strategy.Execute(context.Background(), testRequest("  !!  "), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConceptStrategyMatchesAnalysisConcepts(t *testing.T) {
	corpus := seedCorpus(t,
		&Item{ItemID: "both", Concepts: []string{"caching", "eviction"}},
		&Item{ItemID: "one", Concepts: []string{"caching"}},
		&Item{ItemID: "tagged", Tags: []string{"eviction"}},
		&Item{ItemID: "none", Concepts: []string{"networking"}},
	)
	strategy := NewConceptLookupStrategy(corpus)
	analysis := &types.QueryAnalysis{Concepts: []string{"caching", "eviction"}}

	items, err := strategy.Execute(context.Background(), testRequest("query"), analysis)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "both", items[0].ItemID)
	assert.InDelta(t, 1.0, items[0].RawScore, 1e-9)
	assert.InDelta(t, 0.5, items[1].RawScore, 1e-9)
}

func TestConceptStrategyFallsBackToQueryTokens(t *testing.T) {
	corpus := seedCorpus(t, &Item{ItemID: "x", Concepts: []string{"caching"}})
	strategy := NewConceptLookupStrategy(corpus)

	items, err := strategy.Execute(context.Background(), testRequest("caching"), &types.QueryAnalysis{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].ItemID)
}

func TestGraphStrategyScoresByWeightAndDepth(t *testing.T) {
	ctx := context.Background()
	corpus := seedCorpus(t,
		&Item{ItemID: "item-near", Content: "near"},
		&Item{ItemID: "item-far", Content: "far"},
	)

	store := graph.NewStore()
	_, err := store.AddNode(ctx, "t", "p", "redis", "Tech", types.Properties{
		"item_ids": types.ListOf(types.String("item-near")),
	})
	require.NoError(t, err)
	_, err = store.AddNode(ctx, "t", "p", "eviction", "Concept", types.Properties{
		"item_ids": types.ListOf(types.String("item-far")),
	})
	require.NoError(t, err)
	_, err = store.AddEdge(ctx, "t", "p", graph.EdgeSpec{
		SourceKey: "redis", TargetKey: "eviction", Relation: "relates_to",
		Weight: 0.8, Confidence: 0.9,
	})
	require.NoError(t, err)

	strategy := NewGraphTraversalStrategy(corpus, store)
	analysis := &types.QueryAnalysis{Entities: []string{"redis"}, SuggestedDepth: 2}

	items, err := strategy.Execute(context.Background(), testRequest("redis eviction"), analysis)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Start node items score 1/(1+0); one hop at weight 0.8 scores 0.4.
	assert.Equal(t, "item-near", items[0].ItemID)
	assert.InDelta(t, 1.0, items[0].RawScore, 1e-9)
	assert.Equal(t, "item-far", items[1].ItemID)
	assert.InDelta(t, 0.4, items[1].RawScore, 1e-9)
}

func TestGraphStrategyNoResolvableEntities(t *testing.T) {
	corpus := seedCorpus(t, &Item{ItemID: "x"})
	store := graph.NewStore()
	strategy := NewGraphTraversalStrategy(corpus, store)

	items, err := strategy.Execute(context.Background(), testRequest("nothing matches"), &types.QueryAnalysis{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCorpusFilters(t *testing.T) {
	ctx := context.Background()
	corpus := seedCorpus(t,
		&Item{ItemID: "important", Importance: 0.9, Tags: []string{"prod"}},
		&Item{ItemID: "minor", Importance: 0.1, Tags: []string{"dev"}},
	)

	matched := corpus.Snapshot(ctx, "t", "p", types.SearchFilters{MinImportance: 0.5})
	require.Len(t, matched, 1)
	assert.Equal(t, "important", matched[0].ItemID)

	matched = corpus.Snapshot(ctx, "t", "p", types.SearchFilters{Tags: []string{"DEV"}})
	require.Len(t, matched, 1)
	assert.Equal(t, "minor", matched[0].ItemID)
}
