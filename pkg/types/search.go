package types

import (
	"time"
)

// Strategy identifies one independent retrieval method.
type Strategy string

const (
	StrategyVector  Strategy = "vector"
	StrategyConcept Strategy = "concept"
	StrategyGraph   Strategy = "graph"
	StrategyLexical Strategy = "lexical"
)

// AllStrategies lists every strategy in fusion weight order.
var AllStrategies = []Strategy{StrategyVector, StrategyConcept, StrategyGraph, StrategyLexical}

// QueryIntent classifies what a query is trying to do.
type QueryIntent string

const (
	IntentFactual     QueryIntent = "factual"
	IntentConceptual  QueryIntent = "conceptual"
	IntentExploratory QueryIntent = "exploratory"
	IntentTemporal    QueryIntent = "temporal"
	IntentRelational  QueryIntent = "relational"
	IntentAggregative QueryIntent = "aggregative"
)

// QueryAnalysis is the output of query analysis: intent, extracted terms and
// the per-strategy weight vector. Weights are relative; they need not sum
// to 1.
type QueryAnalysis struct {
	Intent          QueryIntent          `json:"intent"`
	Confidence      float64              `json:"confidence"`
	Entities        []string             `json:"entities,omitempty"`
	Concepts        []string             `json:"concepts,omitempty"`
	TemporalMarkers []string             `json:"temporal_markers,omitempty"`
	RelationTerms   []string             `json:"relation_terms,omitempty"`
	StrategyWeights map[Strategy]float64 `json:"strategy_weights"`
	SuggestedDepth  int                  `json:"suggested_depth,omitempty"`
	OriginalQuery   string               `json:"original_query"`
	AnalyzedAt      time.Time            `json:"analyzed_at"`
}

// SearchableItem is the unit every strategy returns: one candidate content
// item with the strategy's raw (un-normalized) score.
type SearchableItem struct {
	ItemID   string   `json:"item_id"`
	Content  string   `json:"content"`
	Source   Strategy `json:"source_strategy"`
	RawScore float64  `json:"raw_score"`
}

// HybridResult is one fused result. StrategyScores holds the normalized
// per-strategy scores that contributed to HybridScore; FinalScore differs
// from HybridScore only when reranking ran.
type HybridResult struct {
	ItemID         string               `json:"item_id"`
	Content        string               `json:"content"`
	HybridScore    float64              `json:"hybrid_score"`
	FinalScore     float64              `json:"final_score"`
	RerankScore    *float64             `json:"rerank_score,omitempty"`
	StrategyScores map[Strategy]float64 `json:"strategy_scores"`
	Rank           int                  `json:"rank"`
}

// SearchFilters narrows strategy candidate sets. A zero value applies no
// filtering.
type SearchFilters struct {
	Tags          []string   `json:"tags,omitempty"`
	MinImportance float64    `json:"min_importance,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	AtTimestamp   *time.Time `json:"at_timestamp,omitempty"`
	GraphMaxDepth int        `json:"graph_max_depth,omitempty"`
}

// SearchRequest is the single caller-facing search operation.
type SearchRequest struct {
	TenantID      string               `json:"tenant_id"`
	ProjectID     string               `json:"project_id"`
	Query         string               `json:"query"`
	K             int                  `json:"k"`
	Filters       SearchFilters        `json:"filters"`
	Strategies    []Strategy           `json:"enable_strategies,omitempty"`
	EnableRerank  bool                 `json:"enable_rerank"`
	ManualWeights map[Strategy]float64 `json:"manual_weights,omitempty"`
	BypassCache   bool                 `json:"bypass_cache"`
	Conversation  []string             `json:"conversation,omitempty"`
}

// StrategyEnabled reports whether a strategy participates in this request.
// An empty Strategies slice enables all of them.
func (r *SearchRequest) StrategyEnabled(s Strategy) bool {
	if len(r.Strategies) == 0 {
		return true
	}
	for _, enabled := range r.Strategies {
		if enabled == s {
			return true
		}
	}
	return false
}

// SearchResponse carries the fused results plus enough metadata for a caller
// to see which stages ran, which degraded, and where the time went.
type SearchResponse struct {
	Results           []HybridResult       `json:"results"`
	Total             int                  `json:"total"`
	Analysis          *QueryAnalysis       `json:"query_analysis,omitempty"`
	AppliedWeights    map[Strategy]float64 `json:"applied_weights"`
	StrategyCounts    map[Strategy]int     `json:"strategy_counts"`
	SkippedStrategies []Strategy           `json:"skipped_strategies,omitempty"`
	RerankUsed        bool                 `json:"rerank_used"`
	CacheHit          bool                 `json:"cache_hit"`
	AnalysisTimeMs    int64                `json:"analysis_time_ms"`
	SearchTimeMs      int64                `json:"search_time_ms"`
	RerankTimeMs      int64                `json:"rerank_time_ms,omitempty"`
	TotalTimeMs       int64                `json:"total_time_ms"`
}

// RerankCandidate is sent to the reranking collaborator: an item id plus a
// short content snippet.
type RerankCandidate struct {
	ItemID  string `json:"item_id"`
	Snippet string `json:"snippet"`
}

// RankedCandidate is the collaborator's relevance verdict for one candidate.
type RankedCandidate struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}
