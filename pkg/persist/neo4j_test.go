package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/types"
)

func TestImplementsPersistence(t *testing.T) {
	var _ graph.Persistence = (*Neo4jPersistence)(nil)
}

func TestEdgeProps(t *testing.T) {
	validTo := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	edge := &types.GraphEdge{
		ID:           "e1",
		TenantID:     "acme",
		ProjectID:    "docs",
		SourceNodeID: "n1",
		TargetNodeID: "n2",
		Relation:     "depends_on",
		Weight:       0.8,
		Confidence:   0.9,
		ValidFrom:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:      &validTo,
		IsActive:     true,
		Properties:   types.Properties{"note": types.String("x")},
	}

	props := edgeProps(edge)
	assert.Equal(t, "depends_on", props["relation"])
	assert.Equal(t, 0.8, props["weight"])
	assert.Equal(t, validTo, props["valid_to"])
	assert.JSONEq(t, `{"note":"x"}`, props["properties"].(string))

	edge.ValidTo = nil
	assert.Nil(t, edgeProps(edge)["valid_to"])
}
