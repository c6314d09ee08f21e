package dto

import (
	"time"

	"github.com/latticehq/lattice/pkg/search"
	"github.com/latticehq/lattice/pkg/types"
)

// SearchRequest is the JSON body of POST /api/v1/search.
type SearchRequest struct {
	TenantID      string                     `json:"tenant_id" binding:"required"`
	ProjectID     string                     `json:"project_id" binding:"required"`
	Query         string                     `json:"query" binding:"required"`
	K             int                        `json:"k"`
	Filters       types.SearchFilters        `json:"filters"`
	Strategies    []types.Strategy           `json:"strategies,omitempty"`
	EnableRerank  bool                       `json:"enable_rerank"`
	ManualWeights map[types.Strategy]float64 `json:"manual_weights,omitempty"`
	BypassCache   bool                       `json:"bypass_cache"`
	Conversation  []string                   `json:"conversation,omitempty"`
}

// ToTypes converts the wire request into the engine's request type.
func (r *SearchRequest) ToTypes() *types.SearchRequest {
	return &types.SearchRequest{
		TenantID:      r.TenantID,
		ProjectID:     r.ProjectID,
		Query:         r.Query,
		K:             r.K,
		Filters:       r.Filters,
		Strategies:    r.Strategies,
		EnableRerank:  r.EnableRerank,
		ManualWeights: r.ManualWeights,
		BypassCache:   r.BypassCache,
		Conversation:  r.Conversation,
	}
}

// UpsertItemRequest is the JSON body of PUT /api/v1/items.
type UpsertItemRequest struct {
	ItemID     string           `json:"item_id" binding:"required"`
	TenantID   string           `json:"tenant_id" binding:"required"`
	ProjectID  string           `json:"project_id" binding:"required"`
	Content    string           `json:"content" binding:"required"`
	Tags       []string         `json:"tags,omitempty"`
	Importance float64          `json:"importance"`
	Concepts   []string         `json:"concepts,omitempty"`
	Metadata   types.Properties `json:"metadata,omitempty"`
	CreatedAt  *time.Time       `json:"created_at,omitempty"`
}

// ToItem converts the wire request into a corpus item.
func (r *UpsertItemRequest) ToItem() *search.Item {
	item := &search.Item{
		ItemID:     r.ItemID,
		TenantID:   r.TenantID,
		ProjectID:  r.ProjectID,
		Content:    r.Content,
		Tags:       r.Tags,
		Importance: r.Importance,
		Concepts:   r.Concepts,
		Metadata:   r.Metadata,
	}
	if r.CreatedAt != nil {
		item.CreatedAt = *r.CreatedAt
	}
	return item
}
