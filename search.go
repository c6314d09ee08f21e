package lattice

import (
	"context"
	"strings"
	"time"

	"github.com/latticehq/lattice/pkg/search"
	"github.com/latticehq/lattice/pkg/types"
	"github.com/latticehq/lattice/pkg/utils"
)

// Search runs the full hybrid retrieval pipeline: cache lookup, query
// analysis, concurrent strategy fan-out, fusion, optional reranking and
// truncation to K. Strategy failures and timeouts degrade to empty result
// lists recorded in SkippedStrategies; only invalid requests error.
func (e *Engine) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.K <= 0 {
		req.K = e.defaultK
	}
	started := time.Now()

	var cacheKey string
	if !req.BypassCache {
		cacheKey = e.cache.Key(req)
		if cached := e.cache.Get(cacheKey); cached != nil {
			hit := *cached
			hit.CacheHit = true
			hit.TotalTimeMs = time.Since(started).Milliseconds()
			return &hit, nil
		}
	}

	analysisStart := time.Now()
	analysis := e.analyzer.Analyze(ctx, req.Query, strings.Join(req.Conversation, "\n"))
	weights := analysis.StrategyWeights
	if len(req.ManualWeights) > 0 {
		weights = req.ManualWeights
	}
	analysisMs := time.Since(analysisStart).Milliseconds()

	searchStart := time.Now()
	perStrategy, skipped := e.runStrategies(ctx, req, analysis)
	results := search.Fuse(perStrategy, weights)
	searchMs := time.Since(searchStart).Milliseconds()

	var rerankMs int64
	rerankUsed := false
	if req.EnableRerank {
		rerankStart := time.Now()
		results, rerankUsed = e.rerank.Apply(ctx, req.Query, results)
		rerankMs = time.Since(rerankStart).Milliseconds()
	}

	if len(results) > req.K {
		results = results[:req.K]
	}

	counts := make(map[types.Strategy]int, len(perStrategy))
	for strategy, items := range perStrategy {
		counts[strategy] = len(items)
	}

	resp := &types.SearchResponse{
		Results:           results,
		Total:             len(results),
		Analysis:          analysis,
		AppliedWeights:    weights,
		StrategyCounts:    counts,
		SkippedStrategies: skipped,
		RerankUsed:        rerankUsed,
		AnalysisTimeMs:    analysisMs,
		SearchTimeMs:      searchMs,
		RerankTimeMs:      rerankMs,
		TotalTimeMs:       time.Since(started).Milliseconds(),
	}

	if cacheKey != "" {
		e.cache.Put(cacheKey, resp)
	}
	return resp, nil
}

// runStrategies fans the enabled strategies out as bounded goroutines, each
// under its own timeout. A failed or timed-out strategy contributes an empty
// list and is reported as skipped.
func (e *Engine) runStrategies(ctx context.Context, req *types.SearchRequest, analysis *types.QueryAnalysis) (map[types.Strategy][]types.SearchableItem, []types.Strategy) {
	type outcome struct {
		strategy types.Strategy
		items    []types.SearchableItem
	}

	var enabled []search.Executor
	for _, executor := range e.strategies {
		if req.StrategyEnabled(executor.Strategy()) {
			enabled = append(enabled, executor)
		}
	}

	functions := make([]func() (outcome, error), len(enabled))
	for i, executor := range enabled {
		executor := executor
		functions[i] = func() (outcome, error) {
			strategyCtx, cancel := context.WithTimeout(ctx, e.strategyTimeout)
			defer cancel()
			items, err := executor.Execute(strategyCtx, req, analysis)
			if err != nil {
				return outcome{strategy: executor.Strategy()}, err
			}
			return outcome{strategy: executor.Strategy(), items: items}, nil
		}
	}

	results, errs := utils.ExecuteWithResults(ctx, e.maxConcurrency, functions...)

	perStrategy := make(map[types.Strategy][]types.SearchableItem, len(enabled))
	var skipped []types.Strategy
	for i, executor := range enabled {
		if errs[i] != nil {
			e.logger.Warn("search strategy degraded",
				"strategy", executor.Strategy(), "error", errs[i])
			skipped = append(skipped, executor.Strategy())
			continue
		}
		perStrategy[results[i].strategy] = results[i].items
	}
	return perStrategy, skipped
}

func validateRequest(req *types.SearchRequest) error {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.TenantID == "" || req.ProjectID == "" {
		return ErrMissingTenant
	}
	return nil
}
