// Package persist mirrors graph mutations to an external Neo4j-compatible
// database. Writes are best effort; the in-memory store stays authoritative.
package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/latticehq/lattice/pkg/types"
)

// Neo4jPersistence implements graph.Persistence over a Neo4j driver. It also
// works against Memgraph and other Bolt-compatible databases.
type Neo4jPersistence struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jPersistence connects to a Neo4j instance.
func NewNeo4jPersistence(uri, username, password, database string) (*Neo4jPersistence, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jPersistence{
		client:   driver,
		database: database,
	}, nil
}

// VerifyConnectivity checks the database is reachable.
func (p *Neo4jPersistence) VerifyConnectivity(ctx context.Context) error {
	return p.client.VerifyConnectivity(ctx)
}

// Close releases the driver's connection pool.
func (p *Neo4jPersistence) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

// PersistNode upserts a node keyed by its id.
func (p *Neo4jPersistence) PersistNode(ctx context.Context, node *types.GraphNode) error {
	props, err := json.Marshal(node.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal node properties: %w", err)
	}

	session := p.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (n:LatticeNode {id: $id})
			SET n.tenant_id = $tenantID,
			    n.project_id = $projectID,
			    n.node_key = $nodeKey,
			    n.label = $label,
			    n.properties = $properties,
			    n.created_at = $createdAt
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":         node.ID,
			"tenantID":   node.TenantID,
			"projectID":  node.ProjectID,
			"nodeKey":    node.NodeKey,
			"label":      node.Label,
			"properties": string(props),
			"createdAt":  node.CreatedAt.UTC(),
		})
		return nil, err
	})
	return err
}

// PersistEdge upserts an edge and links it to its endpoint nodes.
func (p *Neo4jPersistence) PersistEdge(ctx context.Context, edge *types.GraphEdge) error {
	session := p.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (src:LatticeNode {id: $sourceID})
			MATCH (dst:LatticeNode {id: $targetID})
			MERGE (src)-[r:RELATES {id: $id}]->(dst)
			SET r += $props
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"sourceID": edge.SourceNodeID,
			"targetID": edge.TargetNodeID,
			"id":       edge.ID,
			"props":    edgeProps(edge),
		})
		return nil, err
	})
	return err
}

// UpdateEdge rewrites an existing edge's mutable attributes.
func (p *Neo4jPersistence) UpdateEdge(ctx context.Context, edge *types.GraphEdge) error {
	session := p.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:RELATES {id: $id}]->()
			SET r += $props
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":    edge.ID,
			"props": edgeProps(edge),
		})
		return nil, err
	})
	return err
}

// Clear removes all persisted nodes and edges for one partition.
func (p *Neo4jPersistence) Clear(ctx context.Context, tenantID, projectID string) error {
	session := p.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n:LatticeNode {tenant_id: $tenantID, project_id: $projectID})
			DETACH DELETE n
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"tenantID":  tenantID,
			"projectID": projectID,
		})
		return nil, err
	})
	return err
}

func edgeProps(edge *types.GraphEdge) map[string]any {
	props := map[string]any{
		"tenant_id":     edge.TenantID,
		"project_id":    edge.ProjectID,
		"relation":      edge.Relation,
		"weight":        edge.Weight,
		"confidence":    edge.Confidence,
		"valid_from":    edge.ValidFrom.UTC(),
		"is_active":     edge.IsActive,
		"bidirectional": edge.Bidirectional,
		"created_at":    edge.CreatedAt.UTC(),
	}
	if edge.ValidTo != nil {
		props["valid_to"] = edge.ValidTo.UTC()
	} else {
		props["valid_to"] = nil
	}
	if len(edge.Properties) > 0 {
		if encoded, err := json.Marshal(edge.Properties); err == nil {
			props["properties"] = string(encoded)
		}
	}
	return props
}
