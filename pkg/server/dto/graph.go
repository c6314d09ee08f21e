package dto

import (
	"time"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/types"
)

// AddNodeRequest is the JSON body of POST /api/v1/graph/nodes.
type AddNodeRequest struct {
	Scope
	NodeKey    string           `json:"node_key" binding:"required"`
	Label      string           `json:"label" binding:"required"`
	Properties types.Properties `json:"properties,omitempty"`
}

// AddEdgeRequest is the JSON body of POST /api/v1/graph/edges.
type AddEdgeRequest struct {
	Scope
	SourceKey     string           `json:"source_key" binding:"required"`
	TargetKey     string           `json:"target_key" binding:"required"`
	Relation      string           `json:"relation" binding:"required"`
	Weight        float64          `json:"weight"`
	Confidence    float64          `json:"confidence"`
	Bidirectional bool             `json:"bidirectional"`
	ValidFrom     *time.Time       `json:"valid_from,omitempty"`
	ValidTo       *time.Time       `json:"valid_to,omitempty"`
	Properties    types.Properties `json:"properties,omitempty"`
}

// ToSpec converts the wire request into a store edge spec.
func (r *AddEdgeRequest) ToSpec() graph.EdgeSpec {
	spec := graph.EdgeSpec{
		SourceKey:     r.SourceKey,
		TargetKey:     r.TargetKey,
		Relation:      r.Relation,
		Weight:        r.Weight,
		Confidence:    r.Confidence,
		Bidirectional: r.Bidirectional,
		ValidTo:       r.ValidTo,
		Properties:    r.Properties,
	}
	if r.ValidFrom != nil {
		spec.ValidFrom = *r.ValidFrom
	}
	return spec
}

// EdgeValidityRequest is the JSON body of PUT /api/v1/graph/edges/:edge_id/validity.
type EdgeValidityRequest struct {
	Scope
	ValidFrom time.Time  `json:"valid_from" binding:"required"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// LinkItemsRequest is the JSON body of POST /api/v1/graph/nodes/:node_key/items.
type LinkItemsRequest struct {
	Scope
	ItemIDs []string `json:"item_ids" binding:"required,min=1"`
}

// TraverseRequest is the JSON body of POST /api/v1/graph/traverse.
type TraverseRequest struct {
	Scope
	StartKey       string     `json:"start_key" binding:"required"`
	Algorithm      string     `json:"algorithm"`
	MaxDepth       int        `json:"max_depth"`
	RelationFilter []string   `json:"relation_filter,omitempty"`
	MinWeight      float64    `json:"min_weight"`
	AtTimestamp    *time.Time `json:"at_timestamp,omitempty"`
}

// ToOptions converts the wire request into traversal options.
func (r *TraverseRequest) ToOptions() types.TraversalOptions {
	opts := types.TraversalOptions{
		Algorithm:      types.TraversalAlgorithm(r.Algorithm),
		MaxDepth:       r.MaxDepth,
		RelationFilter: r.RelationFilter,
		MinWeight:      r.MinWeight,
	}
	if r.AtTimestamp != nil {
		opts.AtTimestamp = *r.AtTimestamp
	}
	return opts
}

// ShortestPathRequest is the JSON body of POST /api/v1/graph/shortest-path.
type ShortestPathRequest struct {
	Scope
	StartKey    string     `json:"start_key" binding:"required"`
	EndKey      string     `json:"end_key" binding:"required"`
	MaxDepth    int        `json:"max_depth"`
	MinWeight   float64    `json:"min_weight"`
	AtTimestamp *time.Time `json:"at_timestamp,omitempty"`
}

// CreateSnapshotRequest is the JSON body of POST /api/v1/graph/snapshots.
type CreateSnapshotRequest struct {
	Scope
	Name string `json:"name" binding:"required"`
}

// RestoreSnapshotRequest is the JSON body of
// POST /api/v1/graph/snapshots/:snapshot_id/restore.
type RestoreSnapshotRequest struct {
	Scope
	ClearExisting bool `json:"clear_existing"`
}

// TraverseResponse wraps traversal results with their count.
type TraverseResponse struct {
	Results []types.TraversalResult `json:"results"`
	Total   int                     `json:"total"`
}

// SnapshotSummary is a snapshot without its node and edge payload, used by
// list endpoints.
type SnapshotSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	CreatedAt time.Time `json:"created_at"`
}

// SummarizeSnapshot strips the payload from a snapshot.
func SummarizeSnapshot(s *types.GraphSnapshot) SnapshotSummary {
	return SnapshotSummary{
		ID:        s.ID,
		Name:      s.Name,
		NodeCount: s.NodeCount,
		EdgeCount: s.EdgeCount,
		CreatedAt: s.CreatedAt,
	}
}

// ExportSnapshotResponse lists the files written by a snapshot export.
type ExportSnapshotResponse struct {
	SnapshotID string   `json:"snapshot_id"`
	Files      []string `json:"files"`
}
