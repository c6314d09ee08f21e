package search

import (
	"context"
	"strings"
	"unicode"

	"github.com/latticehq/lattice/pkg/types"
)

// LexicalStrategy scores items by term frequency overlap with the query,
// independent of the vector model. The score combines query term coverage
// with a saturating term frequency component so verbose items do not
// dominate on raw repetition.
type LexicalStrategy struct {
	corpus *Corpus
}

// NewLexicalStrategy creates a lexical strategy over the given corpus.
func NewLexicalStrategy(corpus *Corpus) *LexicalStrategy {
	return &LexicalStrategy{corpus: corpus}
}

func (l *LexicalStrategy) Strategy() types.Strategy { return types.StrategyLexical }

func (l *LexicalStrategy) Execute(ctx context.Context, req *types.SearchRequest, _ *types.QueryAnalysis) ([]types.SearchableItem, error) {
	queryTerms := Tokenize(req.Query)
	if len(queryTerms) == 0 {
		return nil, nil
	}
	unique := make(map[string]bool, len(queryTerms))
	for _, term := range queryTerms {
		unique[term] = true
	}

	var candidates []types.SearchableItem
	for _, item := range l.corpus.Snapshot(ctx, req.TenantID, req.ProjectID, req.Filters) {
		freq := termFrequencies(item.Content)
		var matched int
		var tf float64
		for term := range unique {
			if n := freq[term]; n > 0 {
				matched++
				tf += float64(n) / float64(n+1)
			}
		}
		if matched == 0 {
			continue
		}
		coverage := float64(matched) / float64(len(unique))
		score := coverage * (0.5 + 0.5*tf/float64(matched))
		candidates = append(candidates, types.SearchableItem{
			ItemID:   item.ItemID,
			Content:  item.Content,
			Source:   types.StrategyLexical,
			RawScore: score,
		})
	}
	return topCandidates(candidates, candidateLimit(req.K)), nil
}

func termFrequencies(content string) map[string]int {
	freq := make(map[string]int)
	for _, term := range Tokenize(content) {
		freq[term]++
	}
	return freq
}

// Tokenize lowercases text and splits it on any non-letter, non-digit rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
