package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/latticehq/lattice/pkg/types"
)

const classifierSystemPrompt = `You are a query analyst for a hybrid retrieval engine.
Classify the user's query and respond with a JSON object:
{
  "intent": "factual|conceptual|exploratory|temporal|relational|aggregative",
  "confidence": 0.0-1.0,
  "entities": ["named entities mentioned in the query"],
  "concepts": ["abstract concepts the query is about"],
  "strategy_weights": {"vector": 0.0, "concept": 0.0, "graph": 0.0, "lexical": 0.0},
  "suggested_depth": 1-5
}
The strategy weights should sum to 1.0 and reflect which retrieval strategies
suit the query: vector for semantic similarity, concept for definition lookup,
graph for relationship questions, lexical for exact keyword matches.`

// classifierOutput is the wire shape returned by the classifier model.
type classifierOutput struct {
	Intent         string             `json:"intent"`
	Confidence     float64            `json:"confidence"`
	Entities       []string           `json:"entities"`
	Concepts       []string           `json:"concepts"`
	Weights        map[string]float64 `json:"strategy_weights"`
	SuggestedDepth int                `json:"suggested_depth"`
}

// Classifier implements intent classification through an LLM client. It
// satisfies the analyzer's IntentClassifier contract; callers fall back to
// heuristic analysis whenever Classify errors.
type Classifier struct {
	client Client
	logger *slog.Logger
}

// NewClassifier creates a Classifier on top of an LLM client.
func NewClassifier(client Client, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{client: client, logger: logger}
}

// Classify asks the model for an intent classification and strategy weight
// suggestion for a query.
func (c *Classifier) Classify(ctx context.Context, query, conversation string) (*types.QueryAnalysis, error) {
	if c.client == nil {
		return nil, ErrDisabled
	}

	user := fmt.Sprintf("Query: %s", query)
	if conversation != "" {
		user = fmt.Sprintf("Conversation context:\n%s\n\n%s", conversation, user)
	}
	messages := []types.Message{
		NewSystemMessage(classifierSystemPrompt),
		NewUserMessage(user),
	}

	resp, err := c.client.ChatWithStructuredOutput(ctx, messages, &classifierOutput{})
	if err != nil {
		return nil, fmt.Errorf("classifying query intent: %w", err)
	}
	if resp.Content == "" {
		return nil, ErrEmptyResponse
	}

	var out classifierOutput
	if err := decodeModelJSON(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parsing classifier response: %w", err)
	}

	analysis := &types.QueryAnalysis{
		Intent:         parseIntent(out.Intent),
		Confidence:     out.Confidence,
		Entities:       out.Entities,
		Concepts:       out.Concepts,
		SuggestedDepth: out.SuggestedDepth,
	}
	if len(out.Weights) > 0 {
		analysis.StrategyWeights = make(map[types.Strategy]float64, len(out.Weights))
		for name, w := range out.Weights {
			analysis.StrategyWeights[types.Strategy(name)] = w
		}
	}
	return analysis, nil
}

func parseIntent(raw string) types.QueryIntent {
	switch types.QueryIntent(strings.ToLower(strings.TrimSpace(raw))) {
	case types.IntentFactual:
		return types.IntentFactual
	case types.IntentConceptual:
		return types.IntentConceptual
	case types.IntentTemporal:
		return types.IntentTemporal
	case types.IntentRelational:
		return types.IntentRelational
	case types.IntentAggregative:
		return types.IntentAggregative
	default:
		return types.IntentExploratory
	}
}

var (
	thinkTagPattern  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// decodeModelJSON extracts and decodes a JSON object from model output,
// tolerating think tags, code fences and minor syntax damage.
func decodeModelJSON(content string, v any) error {
	cleaned := thinkTagPattern.ReplaceAllString(content, "")
	if m := codeFencePattern.FindStringSubmatch(cleaned); len(m) == 2 {
		cleaned = m[1]
	}
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("repairing model JSON: %w", err)
	}
	return json.Unmarshal([]byte(repaired), v)
}
