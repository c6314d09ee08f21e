package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

type stubClassifier struct {
	analysis *types.QueryAnalysis
	err      error
}

func (s *stubClassifier) Classify(context.Context, string, string) (*types.QueryAnalysis, error) {
	return s.analysis, s.err
}

func TestAnalyzeHeuristicIntents(t *testing.T) {
	analyzer := NewAnalyzer()
	ctx := context.Background()

	tests := []struct {
		query string
		want  types.QueryIntent
	}{
		{"how does the scheduler relate to the worker pool", types.IntentRelational},
		{"what is the default port", types.IntentFactual},
		{"explain the concept of backpressure", types.IntentConceptual},
		{"changes deployed last week", types.IntentTemporal},
		{"tell me about the storage layer", types.IntentExploratory},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			analysis := analyzer.Analyze(ctx, tc.query, "")
			assert.Equal(t, tc.want, analysis.Intent)
		})
	}
}

func TestAnalyzeTemporalFavorsLexical(t *testing.T) {
	analyzer := NewAnalyzer()

	analysis := analyzer.Analyze(context.Background(), "what changed last week", "")
	require.Equal(t, types.IntentTemporal, analysis.Intent)
	assert.NotEmpty(t, analysis.TemporalMarkers)

	lexical := analysis.StrategyWeights[types.StrategyLexical]
	for _, strategy := range types.AllStrategies {
		if strategy == types.StrategyLexical {
			continue
		}
		assert.Greater(t, lexical, analysis.StrategyWeights[strategy],
			"lexical weight should dominate for temporal queries")
	}
}

func TestAnalyzeClassifierFailureFallsBack(t *testing.T) {
	analyzer := NewAnalyzer(WithClassifier(&stubClassifier{err: assert.AnError}))

	analysis := analyzer.Analyze(context.Background(), "how are services connected", "")
	assert.Equal(t, types.IntentRelational, analysis.Intent)
	assert.Equal(t, ProfileForIntent(types.IntentRelational), analysis.StrategyWeights)
}

func TestAnalyzeClassifierWeightsNormalized(t *testing.T) {
	analyzer := NewAnalyzer(WithClassifier(&stubClassifier{analysis: &types.QueryAnalysis{
		Intent: types.IntentFactual,
		StrategyWeights: map[types.Strategy]float64{
			types.StrategyVector:  0.50,
			types.StrategyConcept: 0.25,
			types.StrategyGraph:   0.15,
			types.StrategyLexical: 0.13,
		},
	}}))

	analysis := analyzer.Analyze(context.Background(), "anything", "")
	var sum float64
	for _, w := range analysis.StrategyWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, analysis.StrategyWeights[types.StrategyVector], analysis.StrategyWeights[types.StrategyConcept])
}

func TestAnalyzeClassifierWeightsRejectedWhenOffBudget(t *testing.T) {
	analyzer := NewAnalyzer(WithClassifier(&stubClassifier{analysis: &types.QueryAnalysis{
		Intent: types.IntentConceptual,
		StrategyWeights: map[types.Strategy]float64{
			types.StrategyVector: 2.0,
		},
	}}))

	analysis := analyzer.Analyze(context.Background(), "anything", "")
	assert.Equal(t, ProfileForIntent(types.IntentConceptual), analysis.StrategyWeights)
}

func TestAnalyzeExtractsEntitiesAndConcepts(t *testing.T) {
	analyzer := NewAnalyzer()

	analysis := analyzer.Analyze(context.Background(), "how does Redis relate to the caching layer", "")
	assert.Contains(t, analysis.Entities, "Redis")
	assert.Contains(t, analysis.Concepts, "caching")
	assert.Equal(t, 3, analysis.SuggestedDepth)
}

func TestWeightProfilesSumToOne(t *testing.T) {
	for name, profile := range WeightProfiles {
		var sum float64
		for _, w := range profile {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "profile %s", name)
	}
}
