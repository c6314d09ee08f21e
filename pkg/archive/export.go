package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/latticehq/lattice/pkg/types"
)

// ParquetExporter writes archived snapshots to Parquet files so graphs can be
// inspected with columnar tooling outside the running service.
type ParquetExporter struct {
	baseDir string
}

// NewParquetExporter creates an exporter rooted at baseDir.
func NewParquetExporter(baseDir string) (*ParquetExporter, error) {
	for _, d := range []string{"nodes", "edges"} {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return &ParquetExporter{baseDir: baseDir}, nil
}

// ParquetNode is the Parquet schema for one graph node.
type ParquetNode struct {
	ID         string    `parquet:"id"`
	TenantID   string    `parquet:"tenant_id"`
	ProjectID  string    `parquet:"project_id"`
	NodeKey    string    `parquet:"node_key"`
	Label      string    `parquet:"label"`
	Properties string    `parquet:"properties"` // JSON string
	CreatedAt  time.Time `parquet:"created_at"`
	SnapshotID string    `parquet:"snapshot_id"`
}

// ParquetEdge is the Parquet schema for one graph edge.
type ParquetEdge struct {
	ID            string     `parquet:"id"`
	TenantID      string     `parquet:"tenant_id"`
	ProjectID     string     `parquet:"project_id"`
	SourceNodeID  string     `parquet:"source_node_id"`
	TargetNodeID  string     `parquet:"target_node_id"`
	Relation      string     `parquet:"relation"`
	Weight        float64    `parquet:"weight"`
	Confidence    float64    `parquet:"confidence"`
	ValidFrom     time.Time  `parquet:"valid_from"`
	ValidTo       *time.Time `parquet:"valid_to"`
	IsActive      bool       `parquet:"is_active"`
	Bidirectional bool       `parquet:"bidirectional"`
	Properties    string     `parquet:"properties"` // JSON string
	CreatedAt     time.Time  `parquet:"created_at"`
	SnapshotID    string     `parquet:"snapshot_id"`
}

// Export writes a snapshot's nodes and edges as one Parquet file each and
// returns the written paths.
func (e *ParquetExporter) Export(snapshot *types.GraphSnapshot) ([]string, error) {
	var written []string

	if len(snapshot.Nodes) > 0 {
		rows := make([]ParquetNode, 0, len(snapshot.Nodes))
		for _, n := range snapshot.Nodes {
			props, err := json.Marshal(n.Properties)
			if err != nil {
				return written, fmt.Errorf("failed to marshal node properties: %w", err)
			}
			rows = append(rows, ParquetNode{
				ID:         n.ID,
				TenantID:   n.TenantID,
				ProjectID:  n.ProjectID,
				NodeKey:    n.NodeKey,
				Label:      n.Label,
				Properties: string(props),
				CreatedAt:  n.CreatedAt,
				SnapshotID: snapshot.ID,
			})
		}
		path := filepath.Join(e.baseDir, "nodes", fmt.Sprintf("nodes_%s.parquet", snapshot.ID))
		if err := parquet.WriteFile(path, rows); err != nil {
			return written, fmt.Errorf("failed to write node parquet: %w", err)
		}
		written = append(written, path)
	}

	if len(snapshot.Edges) > 0 {
		rows := make([]ParquetEdge, 0, len(snapshot.Edges))
		for _, ed := range snapshot.Edges {
			props, err := json.Marshal(ed.Properties)
			if err != nil {
				return written, fmt.Errorf("failed to marshal edge properties: %w", err)
			}
			rows = append(rows, ParquetEdge{
				ID:            ed.ID,
				TenantID:      ed.TenantID,
				ProjectID:     ed.ProjectID,
				SourceNodeID:  ed.SourceNodeID,
				TargetNodeID:  ed.TargetNodeID,
				Relation:      ed.Relation,
				Weight:        ed.Weight,
				Confidence:    ed.Confidence,
				ValidFrom:     ed.ValidFrom,
				ValidTo:       ed.ValidTo,
				IsActive:      ed.IsActive,
				Bidirectional: ed.Bidirectional,
				Properties:    string(props),
				CreatedAt:     ed.CreatedAt,
				SnapshotID:    snapshot.ID,
			})
		}
		path := filepath.Join(e.baseDir, "edges", fmt.Sprintf("edges_%s.parquet", snapshot.ID))
		if err := parquet.WriteFile(path, rows); err != nil {
			return written, fmt.Errorf("failed to write edge parquet: %w", err)
		}
		written = append(written, path)
	}

	return written, nil
}
