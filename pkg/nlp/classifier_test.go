package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

type cannedClient struct {
	content string
	err     error
}

func (c *cannedClient) Chat(context.Context, []types.Message) (*types.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &types.Response{Content: c.content}, nil
}

func (c *cannedClient) ChatWithStructuredOutput(context.Context, []types.Message, any) (*types.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &types.Response{Content: c.content}, nil
}

func (c *cannedClient) Close() error { return nil }

func TestClassifierParsesStructuredOutput(t *testing.T) {
	client := &cannedClient{content: `{
		"intent": "relational",
		"confidence": 0.9,
		"entities": ["Redis"],
		"concepts": ["caching"],
		"strategy_weights": {"vector": 0.15, "concept": 0.25, "graph": 0.50, "lexical": 0.10},
		"suggested_depth": 3
	}`}
	classifier := NewClassifier(client, nil)

	analysis, err := classifier.Classify(context.Background(), "how does redis relate to caching", "")
	require.NoError(t, err)
	assert.Equal(t, types.IntentRelational, analysis.Intent)
	assert.Equal(t, []string{"Redis"}, analysis.Entities)
	assert.InDelta(t, 0.5, analysis.StrategyWeights[types.StrategyGraph], 1e-9)
	assert.Equal(t, 3, analysis.SuggestedDepth)
}

func TestClassifierToleratesFencedAndDamagedJSON(t *testing.T) {
	client := &cannedClient{content: "```json\n{\"intent\": \"factual\", \"confidence\": 0.8,}\n```"}
	classifier := NewClassifier(client, nil)

	analysis, err := classifier.Classify(context.Background(), "what is the port", "")
	require.NoError(t, err)
	assert.Equal(t, types.IntentFactual, analysis.Intent)
	assert.InDelta(t, 0.8, analysis.Confidence, 1e-9)
}

func TestClassifierUnknownIntentDefaultsToExploratory(t *testing.T) {
	client := &cannedClient{content: `{"intent": "mystery", "confidence": 0.4}`}
	classifier := NewClassifier(client, nil)

	analysis, err := classifier.Classify(context.Background(), "query", "")
	require.NoError(t, err)
	assert.Equal(t, types.IntentExploratory, analysis.Intent)
}

func TestClassifierPropagatesClientError(t *testing.T) {
	classifier := NewClassifier(&cannedClient{err: assert.AnError}, nil)
	_, err := classifier.Classify(context.Background(), "query", "")
	assert.Error(t, err)

	disabled := NewClassifier(nil, nil)
	_, err = disabled.Classify(context.Background(), "query", "")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestRerankerScoresCandidates(t *testing.T) {
	client := &cannedClient{content: `{"scores": [
		{"id": "a", "score": 0.9},
		{"id": "b", "score": 1.4},
		{"id": "ghost", "score": 0.5}
	]}`}
	reranker := NewLLMReranker(client, nil)

	ranked, err := reranker.Score(context.Background(), "query", []types.RerankCandidate{
		{ItemID: "a", Snippet: "first"},
		{ItemID: "b", Snippet: "second"},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ItemID)
	assert.InDelta(t, 0.9, ranked[0].Score, 1e-9)
	// Out-of-range scores are clamped, unknown ids dropped.
	assert.InDelta(t, 1.0, ranked[1].Score, 1e-9)
}

func TestRerankerNoKnownCandidates(t *testing.T) {
	client := &cannedClient{content: `{"scores": [{"id": "ghost", "score": 0.5}]}`}
	reranker := NewLLMReranker(client, nil)

	_, err := reranker.Score(context.Background(), "query", []types.RerankCandidate{
		{ItemID: "a", Snippet: "first"},
	})
	assert.ErrorIs(t, err, &EmptyResponseError{})
}
