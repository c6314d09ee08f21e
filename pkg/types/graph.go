package types

import (
	"time"
)

// TraversalAlgorithm selects the visit order for graph traversal.
type TraversalAlgorithm string

const (
	TraversalBFS TraversalAlgorithm = "bfs"
	TraversalDFS TraversalAlgorithm = "dfs"
)

// GraphNode is a typed entity in the knowledge graph. (tenant, project,
// node_key) is unique; NodeKey is the caller-facing identifier while ID is
// the store-assigned UUID.
type GraphNode struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ProjectID  string     `json:"project_id"`
	NodeKey    string     `json:"node_key"`
	Label      string     `json:"label"`
	Properties Properties `json:"properties,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GraphEdge is a weighted, temporally versioned relation between two nodes.
// Weight and Confidence are bounded to [0,1]; ValidTo is nil for an
// open-ended validity window.
type GraphEdge struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	ProjectID     string     `json:"project_id"`
	SourceNodeID  string     `json:"source_node_id"`
	TargetNodeID  string     `json:"target_node_id"`
	Relation      string     `json:"relation"`
	Weight        float64    `json:"weight"`
	Confidence    float64    `json:"confidence"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	IsActive      bool       `json:"is_active"`
	Bidirectional bool       `json:"bidirectional"`
	Properties    Properties `json:"properties,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ValidAt reports whether the edge's validity window covers ts.
func (e *GraphEdge) ValidAt(ts time.Time) bool {
	if e.ValidFrom.After(ts) {
		return false
	}
	if e.ValidTo != nil && e.ValidTo.Before(ts) {
		return false
	}
	return true
}

// GraphSnapshot is an immutable, named point-in-time copy of a partition's
// nodes and edges. (tenant, project, name) is unique.
type GraphSnapshot struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	Nodes     []*GraphNode    `json:"nodes"`
	Edges     []*GraphEdge    `json:"edges"`
	Stats     GraphStatistics `json:"stats"`
	CreatedAt time.Time       `json:"created_at"`
}

// GraphStatistics aggregates partition-level metrics over active edges.
type GraphStatistics struct {
	NodeCount          int            `json:"node_count"`
	EdgeCount          int            `json:"edge_count"`
	ActiveEdgeCount    int            `json:"active_edge_count"`
	BidirectionalCount int            `json:"bidirectional_count"`
	AverageWeight      float64        `json:"average_weight"`
	RelationCounts     map[string]int `json:"relation_counts"`
}

// NodeDegree holds connectivity metrics for a single node.
type NodeDegree struct {
	NodeKey     string  `json:"node_key"`
	In          int     `json:"in_degree"`
	Out         int     `json:"out_degree"`
	Total       int     `json:"total_degree"`
	WeightedIn  float64 `json:"weighted_in_degree"`
	WeightedOut float64 `json:"weighted_out_degree"`
}

// TraversalResult is one visited node during BFS/DFS traversal. Path holds
// node keys from the start node inclusive; CumulativeWeight is the product of
// edge weights along Path.
type TraversalResult struct {
	Node             *GraphNode `json:"node"`
	Depth            int        `json:"depth"`
	Path             []string   `json:"path"`
	CumulativeWeight float64    `json:"cumulative_weight"`
}

// TraversalOptions controls a point-in-time traversal.
type TraversalOptions struct {
	Algorithm      TraversalAlgorithm
	MaxDepth       int
	RelationFilter []string
	MinWeight      float64
	AtTimestamp    time.Time
}

// GraphPath is a weighted path between two nodes. TotalDistance is the sum of
// (1 - weight) over the path's edges, so heavier edges are cheaper.
type GraphPath struct {
	NodeKeys      []string `json:"node_keys"`
	NodeLabels    []string `json:"node_labels"`
	EdgeCount     int      `json:"edge_count"`
	TotalDistance float64  `json:"total_distance"`
}

// ConnectedNode is a node reachable via undirected BFS with its minimum hop
// distance from the origin.
type ConnectedNode struct {
	NodeKey  string `json:"node_key"`
	Distance int    `json:"distance"`
}
