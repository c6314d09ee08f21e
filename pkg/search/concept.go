package search

import (
	"context"

	"github.com/latticehq/lattice/pkg/types"
)

// ConceptLookupStrategy matches the analyzer's extracted concepts and
// entities against each item's canonical concept entries and tags. The score
// is the matched fraction of query concepts, so an item covering every
// concept scores 1.0.
type ConceptLookupStrategy struct {
	corpus *Corpus
}

// NewConceptLookupStrategy creates a concept strategy over the given corpus.
func NewConceptLookupStrategy(corpus *Corpus) *ConceptLookupStrategy {
	return &ConceptLookupStrategy{corpus: corpus}
}

func (c *ConceptLookupStrategy) Strategy() types.Strategy { return types.StrategyConcept }

func (c *ConceptLookupStrategy) Execute(ctx context.Context, req *types.SearchRequest, analysis *types.QueryAnalysis) ([]types.SearchableItem, error) {
	terms := conceptTerms(req.Query, analysis)
	if len(terms) == 0 {
		return nil, nil
	}

	var candidates []types.SearchableItem
	for _, item := range c.corpus.Snapshot(ctx, req.TenantID, req.ProjectID, req.Filters) {
		itemConcepts := make(map[string]bool, len(item.Concepts)+len(item.Tags))
		for _, concept := range item.Concepts {
			for _, token := range Tokenize(concept) {
				itemConcepts[token] = true
			}
		}
		for _, tag := range item.Tags {
			for _, token := range Tokenize(tag) {
				itemConcepts[token] = true
			}
		}
		if len(itemConcepts) == 0 {
			continue
		}
		var matched int
		for term := range terms {
			if itemConcepts[term] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		candidates = append(candidates, types.SearchableItem{
			ItemID:   item.ItemID,
			Content:  item.Content,
			Source:   types.StrategyConcept,
			RawScore: float64(matched) / float64(len(terms)),
		})
	}
	return topCandidates(candidates, candidateLimit(req.K)), nil
}

// conceptTerms collects lookup terms from the analysis, falling back to the
// raw query tokens when the analyzer extracted nothing.
func conceptTerms(query string, analysis *types.QueryAnalysis) map[string]bool {
	terms := make(map[string]bool)
	if analysis != nil {
		for _, concept := range analysis.Concepts {
			for _, token := range Tokenize(concept) {
				terms[token] = true
			}
		}
		for _, entity := range analysis.Entities {
			for _, token := range Tokenize(entity) {
				terms[token] = true
			}
		}
	}
	if len(terms) == 0 {
		for _, token := range Tokenize(query) {
			terms[token] = true
		}
	}
	return terms
}
