package lattice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/latticehq/lattice/pkg/embedder"
	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/search"
	"github.com/latticehq/lattice/pkg/types"
)

// Defaults applied by Engine.Search when the request leaves them unset.
const (
	DefaultK               = 10
	DefaultStrategyTimeout = 300 * time.Millisecond
)

var (
	// ErrEmptyQuery is returned when a search request has no query text.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrMissingTenant is returned when tenant or project is missing.
	ErrMissingTenant = errors.New("tenant_id and project_id are required")
	// ErrItemNotFound is returned when a content item does not exist.
	ErrItemNotFound = errors.New("item not found")
)

// Engine is the facade over the hybrid retrieval pipeline and the knowledge
// graph store. All operations are safe for concurrent use.
type Engine struct {
	corpus   *search.Corpus
	store    *graph.Store
	analyzer *search.Analyzer
	cache    *search.Cache
	rerank   *search.RerankStage
	embedder embedder.Client

	classifier search.IntentClassifier
	reranker   search.Reranker
	rerankTopK int

	strategies      []search.Executor
	strategyTimeout time.Duration
	maxConcurrency  int
	defaultK        int

	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder wires an embedding client, enabling the vector strategy and
// embedding at item upsert.
func WithEmbedder(c embedder.Client) Option {
	return func(e *Engine) { e.embedder = c }
}

// WithClassifier delegates intent classification to an LLM collaborator.
func WithClassifier(c search.IntentClassifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithReranker wires the reranking collaborator.
func WithReranker(r search.Reranker, topK int) Option {
	return func(e *Engine) {
		e.reranker = r
		e.rerankTopK = topK
	}
}

// WithGraphStore replaces the default store, letting callers configure
// persistence, archiving and cycle depth through graph.Store options.
func WithGraphStore(s *graph.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithCache replaces the default search cache.
func WithCache(c *search.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithStrategyTimeout bounds each strategy's execution time.
func WithStrategyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.strategyTimeout = d
		}
	}
}

// WithDefaultK sets the result count used when a request leaves K at zero.
func WithDefaultK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.defaultK = k
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine assembles the retrieval pipeline. Collaborator-free engines run
// with heuristic analysis, no vector strategy and no reranking.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		corpus:          search.NewCorpus(),
		strategyTimeout: DefaultStrategyTimeout,
		maxConcurrency:  len(types.AllStrategies),
		defaultK:        DefaultK,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = graph.NewStore(graph.WithLogger(e.logger))
	}
	analyzerOpts := []search.AnalyzerOption{search.WithAnalyzerLogger(e.logger)}
	if e.classifier != nil {
		analyzerOpts = append(analyzerOpts, search.WithClassifier(e.classifier))
	}
	e.analyzer = search.NewAnalyzer(analyzerOpts...)
	if e.cache == nil {
		e.cache = search.NewCache()
	}
	if e.rerankTopK <= 0 {
		e.rerankTopK = search.DefaultRerankTopK
	}
	e.rerank = search.NewRerankStage(e.reranker, e.rerankTopK, e.logger)

	var vectorEmbedder search.Embedder
	if e.embedder != nil {
		vectorEmbedder = &embedderAdapter{client: e.embedder}
	}
	e.strategies = []search.Executor{
		search.NewVectorStrategy(e.corpus, vectorEmbedder),
		search.NewConceptLookupStrategy(e.corpus),
		search.NewGraphTraversalStrategy(e.corpus, e.store),
		search.NewLexicalStrategy(e.corpus),
	}
	return e
}

// Graph exposes the underlying graph store for admin operations.
func (e *Engine) Graph() *graph.Store {
	return e.store
}

// CacheStats reports search cache counters.
func (e *Engine) CacheStats() search.CacheStats {
	return e.cache.Stats()
}

// Close releases collaborator resources.
func (e *Engine) Close() error {
	if e.embedder != nil {
		return e.embedder.Close()
	}
	return nil
}

// embedderAdapter narrows the batch embedding client to the single-text
// interface the vector strategy needs.
type embedderAdapter struct {
	client embedder.Client
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.client.EmbedSingle(ctx, text)
}
