package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/latticehq/lattice/pkg/types"
)

const rerankerSystemPrompt = `You are a relevance judge for a retrieval engine.
You will receive a query and a numbered list of candidate snippets. Score each
candidate's relevance to the query from 0.0 (irrelevant) to 1.0 (directly
answers it). Respond with a JSON object:
{"scores": [{"id": "<candidate id>", "score": 0.0}]}
Include every candidate exactly once.`

type rerankerOutput struct {
	Scores []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// LLMReranker implements candidate re-scoring through an LLM client. It
// satisfies the rerank stage's Reranker contract; the stage passes results
// through unchanged whenever Score errors.
type LLMReranker struct {
	client Client
	logger *slog.Logger
}

// NewLLMReranker creates a reranker on top of an LLM client.
func NewLLMReranker(client Client, logger *slog.Logger) *LLMReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{client: client, logger: logger}
}

// Score asks the model to judge each candidate's relevance to the query.
func (r *LLMReranker) Score(ctx context.Context, query string, candidates []types.RerankCandidate) ([]types.RankedCandidate, error) {
	if r.client == nil {
		return nil, ErrDisabled
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nCandidates:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "[%s] %s\n", c.ItemID, c.Snippet)
	}
	messages := []types.Message{
		NewSystemMessage(rerankerSystemPrompt),
		NewUserMessage(sb.String()),
	}

	resp, err := r.client.ChatWithStructuredOutput(ctx, messages, &rerankerOutput{})
	if err != nil {
		return nil, fmt.Errorf("reranking candidates: %w", err)
	}
	if resp.Content == "" {
		return nil, ErrEmptyResponse
	}

	var out rerankerOutput
	if err := decodeModelJSON(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parsing reranker response: %w", err)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ItemID] = true
	}
	ranked := make([]types.RankedCandidate, 0, len(out.Scores))
	for _, s := range out.Scores {
		if !known[s.ID] {
			r.logger.Debug("reranker returned unknown candidate id", "id", s.ID)
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		ranked = append(ranked, types.RankedCandidate{ItemID: s.ID, Score: score})
	}
	if len(ranked) == 0 {
		return nil, NewEmptyResponseError("reranker scored no known candidates")
	}
	return ranked, nil
}
