package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/latticehq/lattice/pkg/types"
)

// IntentClassifier is the external collaborator that classifies a query's
// intent and extracts entities and concepts. Implementations live in pkg/nlp.
type IntentClassifier interface {
	Classify(ctx context.Context, query, conversation string) (*types.QueryAnalysis, error)
}

// WeightProfiles are the deterministic per-intent strategy weight tables.
// Values within a profile sum to 1.
var WeightProfiles = map[string]map[types.Strategy]float64{
	"balanced": {
		types.StrategyVector:  0.35,
		types.StrategyConcept: 0.25,
		types.StrategyGraph:   0.20,
		types.StrategyLexical: 0.20,
	},
	"factual": {
		types.StrategyVector:  0.45,
		types.StrategyConcept: 0.30,
		types.StrategyGraph:   0.10,
		types.StrategyLexical: 0.15,
	},
	"conceptual": {
		types.StrategyVector:  0.20,
		types.StrategyConcept: 0.50,
		types.StrategyGraph:   0.20,
		types.StrategyLexical: 0.10,
	},
	"relational": {
		types.StrategyVector:  0.15,
		types.StrategyConcept: 0.25,
		types.StrategyGraph:   0.50,
		types.StrategyLexical: 0.10,
	},
	"keyword": {
		types.StrategyVector:  0.30,
		types.StrategyConcept: 0.10,
		types.StrategyGraph:   0.10,
		types.StrategyLexical: 0.50,
	},
}

// intentProfiles maps each intent to its fallback weight profile. Temporal
// queries lean on lexical matching because time expressions are better
// matched literally than semantically.
var intentProfiles = map[types.QueryIntent]string{
	types.IntentFactual:     "factual",
	types.IntentConceptual:  "conceptual",
	types.IntentExploratory: "balanced",
	types.IntentTemporal:    "keyword",
	types.IntentRelational:  "relational",
	types.IntentAggregative: "balanced",
}

var (
	relationalMarkers = []string{"how", "relate", "related", "relationship", "connection", "connected", "between", "depend", "depends"}
	factualMarkers    = []string{"what", "when", "who", "where", "specific", "exactly"}
	conceptualMarkers = []string{"concept", "understand", "explain", "meaning", "why"}
	temporalMarkers   = []string{"recent", "recently", "last", "yesterday", "today", "ago", "latest"}
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "be": true, "did": true,
	"do": true, "does": true, "for": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "was": true,
	"with": true,
}

// Analyzer produces a QueryAnalysis for each search. It delegates to the
// classifier collaborator when one is configured and falls back to the
// deterministic heuristic table when the collaborator is absent or fails, so
// analysis never blocks a search.
type Analyzer struct {
	classifier IntentClassifier
	logger     *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClassifier sets the external intent classification collaborator.
func WithClassifier(c IntentClassifier) AnalyzerOption {
	return func(a *Analyzer) { a.classifier = c }
}

// WithAnalyzerLogger sets the structured logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies the query and attaches strategy weights. Classifier
// weights are accepted only when they sum close to 1 and are then
// renormalized; otherwise the intent's profile applies.
func (a *Analyzer) Analyze(ctx context.Context, query, conversation string) *types.QueryAnalysis {
	if a.classifier != nil {
		analysis, err := a.classifier.Classify(ctx, query, conversation)
		if err == nil && analysis != nil {
			a.finalize(analysis, query)
			return analysis
		}
		if err != nil {
			a.logger.Warn("intent classifier unavailable, using heuristic analysis", "error", err)
		}
	}
	analysis := a.heuristicAnalysis(query)
	a.finalize(analysis, query)
	return analysis
}

func (a *Analyzer) finalize(analysis *types.QueryAnalysis, query string) {
	if analysis.Intent == "" {
		analysis.Intent = types.IntentExploratory
	}
	if !validWeights(analysis.StrategyWeights) {
		analysis.StrategyWeights = ProfileForIntent(analysis.Intent)
	} else {
		analysis.StrategyWeights = normalizeWeights(analysis.StrategyWeights)
	}
	if analysis.SuggestedDepth <= 0 {
		analysis.SuggestedDepth = suggestedDepth(analysis.Intent)
	}
	analysis.OriginalQuery = query
	analysis.AnalyzedAt = time.Now().UTC()
}

// heuristicAnalysis is the deterministic fallback: marker words pick the
// intent, capitalized tokens become entities, and the remaining significant
// tokens become concepts.
func (a *Analyzer) heuristicAnalysis(query string) *types.QueryAnalysis {
	tokens := Tokenize(query)
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[tok] = true
	}
	matchedOf := func(markers []string) []string {
		var matched []string
		for _, m := range markers {
			if present[m] {
				matched = append(matched, m)
			}
		}
		return matched
	}

	analysis := &types.QueryAnalysis{
		Intent:          types.IntentExploratory,
		Confidence:      0.5,
		TemporalMarkers: matchedOf(temporalMarkers),
		RelationTerms:   matchedOf(relationalMarkers),
	}
	switch {
	case len(analysis.RelationTerms) > 0:
		analysis.Intent = types.IntentRelational
	case len(matchedOf(factualMarkers)) > 0 && len(analysis.TemporalMarkers) == 0:
		analysis.Intent = types.IntentFactual
	case len(matchedOf(conceptualMarkers)) > 0:
		analysis.Intent = types.IntentConceptual
	case len(analysis.TemporalMarkers) > 0:
		analysis.Intent = types.IntentTemporal
	}

	for _, word := range strings.Fields(query) {
		runes := []rune(word)
		if len(runes) > 1 && unicode.IsUpper(runes[0]) {
			analysis.Entities = append(analysis.Entities, strings.Trim(word, ".,!?;:"))
		}
	}
	for _, tok := range tokens {
		if len(tok) > 3 && !stopwords[tok] {
			analysis.Concepts = append(analysis.Concepts, tok)
		}
	}
	return analysis
}

// ProfileForIntent returns a copy of the intent's weight profile.
func ProfileForIntent(intent types.QueryIntent) map[types.Strategy]float64 {
	name, ok := intentProfiles[intent]
	if !ok {
		name = "balanced"
	}
	profile := WeightProfiles[name]
	weights := make(map[types.Strategy]float64, len(profile))
	for strategy, w := range profile {
		weights[strategy] = w
	}
	return weights
}

// validWeights accepts a weight map only when every strategy is covered, no
// weight is negative and the sum is within 5% of 1.
func validWeights(weights map[types.Strategy]float64) bool {
	if len(weights) == 0 {
		return false
	}
	var sum float64
	for _, strategy := range types.AllStrategies {
		w, ok := weights[strategy]
		if !ok || w < 0 {
			return false
		}
		sum += w
	}
	return sum >= 0.95 && sum <= 1.05
}

func normalizeWeights(weights map[types.Strategy]float64) map[types.Strategy]float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return weights
	}
	normalized := make(map[types.Strategy]float64, len(weights))
	for strategy, w := range weights {
		normalized[strategy] = w / sum
	}
	return normalized
}

func suggestedDepth(intent types.QueryIntent) int {
	if intent == types.IntentRelational {
		return 3
	}
	return 2
}
