package graph

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/latticehq/lattice/pkg/types"
)

// CreateSnapshot captures the partition's full node and edge state under a
// unique name. The capture is atomic with respect to concurrent mutations.
// When an archive is configured the snapshot is also written there.
func (s *Store) CreateSnapshot(ctx context.Context, tenantID, projectID, name string) (*types.GraphSnapshot, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	p := s.getPartition(tenantID, projectID)

	p.mu.Lock()
	if _, exists := p.snapNames[name]; exists {
		p.mu.Unlock()
		return nil, ErrSnapshotExists
	}
	snap := &types.GraphSnapshot{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ProjectID: projectID,
		Name:      name,
		NodeCount: len(p.nodes),
		EdgeCount: len(p.edges),
		Nodes:     make([]*types.GraphNode, 0, len(p.nodes)),
		Edges:     make([]*types.GraphEdge, 0, len(p.edges)),
		CreatedAt: time.Now().UTC(),
	}
	for _, n := range p.nodes {
		snap.Nodes = append(snap.Nodes, copyNode(n))
	}
	for _, e := range p.edges {
		snap.Edges = append(snap.Edges, copyEdge(e))
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].NodeKey < snap.Nodes[j].NodeKey })
	sort.Slice(snap.Edges, func(i, j int) bool { return snap.Edges[i].ID < snap.Edges[j].ID })
	snap.Stats = *statsLocked(p)
	p.snapshots[snap.ID] = snap
	p.snapNames[name] = snap.ID
	p.mu.Unlock()

	if s.archive != nil {
		if err := s.archive.Put(ctx, snap); err != nil {
			s.logger.Warn("snapshot archive write failed",
				"snapshot", name, "error", err)
		}
	}
	return snap, nil
}

// GetSnapshot returns a snapshot by id, falling back to the archive when the
// snapshot is no longer held in memory.
func (s *Store) GetSnapshot(ctx context.Context, tenantID, projectID, snapshotID string) (*types.GraphSnapshot, error) {
	if p, ok := s.peekPartition(tenantID, projectID); ok {
		p.mu.RLock()
		snap, found := p.snapshots[snapshotID]
		p.mu.RUnlock()
		if found {
			return snap, nil
		}
	}
	if s.archive != nil {
		snap, err := s.archive.Get(ctx, snapshotID)
		if err == nil && snap.TenantID == tenantID && snap.ProjectID == projectID {
			return snap, nil
		}
		if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
			return nil, err
		}
	}
	return nil, ErrSnapshotNotFound
}

// RestoreResult reports what a restore changed.
type RestoreResult struct {
	NodesRestored int `json:"nodes_restored"`
	EdgesRestored int `json:"edges_restored"`
	NodesSkipped  int `json:"nodes_skipped"`
	EdgesSkipped  int `json:"edges_skipped"`
}

// RestoreSnapshot rebuilds a partition from a snapshot. With clearExisting
// the current graph is dropped first and the snapshot is restored verbatim.
// Without it the snapshot is merged: nodes whose key already exists are
// skipped, edge endpoints are resolved by node key against the merged graph,
// and edges that would duplicate an active edge or close a cycle are skipped.
func (s *Store) RestoreSnapshot(ctx context.Context, tenantID, projectID, snapshotID string, clearExisting bool) (*RestoreResult, error) {
	snap, err := s.GetSnapshot(ctx, tenantID, projectID, snapshotID)
	if err != nil {
		return nil, err
	}
	p := s.getPartition(tenantID, projectID)

	// Node key lookup for the snapshot's own ids, used to re-link edges.
	snapKeys := make(map[string]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		snapKeys[n.ID] = n.NodeKey
	}

	p.mu.Lock()
	if clearExisting {
		p.nodes = make(map[string]*types.GraphNode)
		p.keyToID = make(map[string]string)
		p.edges = make(map[string]*types.GraphEdge)
		p.out = make(map[string][]string)
		p.in = make(map[string][]string)
	}

	result := &RestoreResult{}
	for _, n := range snap.Nodes {
		if _, exists := p.keyToID[n.NodeKey]; exists {
			result.NodesSkipped++
			continue
		}
		restored := copyNode(n)
		p.nodes[restored.ID] = restored
		p.keyToID[restored.NodeKey] = restored.ID
		result.NodesRestored++
	}
	for _, e := range snap.Edges {
		sourceID, okSource := p.keyToID[snapKeys[e.SourceNodeID]]
		targetID, okTarget := p.keyToID[snapKeys[e.TargetNodeID]]
		if !okSource || !okTarget {
			result.EdgesSkipped++
			continue
		}
		if _, exists := p.edges[e.ID]; exists {
			result.EdgesSkipped++
			continue
		}
		conflict := false
		if e.IsActive {
			for _, otherID := range p.out[sourceID] {
				other := p.edges[otherID]
				if other.IsActive && other.TargetNodeID == targetID && other.Relation == e.Relation {
					conflict = true
					break
				}
			}
			if !conflict && !e.Bidirectional {
				conflict = p.findCyclePath(targetID, sourceID, s.cycleDepth) != nil
			}
		}
		if conflict {
			result.EdgesSkipped++
			continue
		}
		restored := copyEdge(e)
		restored.SourceNodeID = sourceID
		restored.TargetNodeID = targetID
		p.edges[restored.ID] = restored
		p.out[sourceID] = insertSorted(p.out[sourceID], restored.ID)
		p.in[targetID] = insertSorted(p.in[targetID], restored.ID)
		result.EdgesRestored++
	}
	p.mu.Unlock()

	if s.persist != nil {
		if clearExisting {
			if err := s.persist.Clear(ctx, tenantID, projectID); err != nil {
				s.logger.Warn("graph persistence clear failed", "error", err)
			}
		}
		s.replayToPersistence(ctx, p)
	}
	return result, nil
}

// ListSnapshots returns snapshot metadata for a partition, newest first. The
// archive is consulted when configured so snapshots survive restarts.
func (s *Store) ListSnapshots(ctx context.Context, tenantID, projectID string, limit int) ([]*types.GraphSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.archive != nil {
		return s.archive.List(ctx, tenantID, projectID, limit)
	}
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, nil
	}
	p.mu.RLock()
	snaps := make([]*types.GraphSnapshot, 0, len(p.snapshots))
	for _, snap := range p.snapshots {
		snaps = append(snaps, snap)
	}
	p.mu.RUnlock()
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].Name < snaps[j].Name
	})
	if len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

// replayToPersistence mirrors the in-memory partition to external storage
// after a restore, best effort.
func (s *Store) replayToPersistence(ctx context.Context, p *partition) {
	p.mu.RLock()
	nodes := make([]*types.GraphNode, 0, len(p.nodes))
	for _, n := range p.nodes {
		nodes = append(nodes, copyNode(n))
	}
	edges := make([]*types.GraphEdge, 0, len(p.edges))
	for _, e := range p.edges {
		edges = append(edges, copyEdge(e))
	}
	p.mu.RUnlock()

	for _, n := range nodes {
		if err := s.persist.PersistNode(ctx, n); err != nil {
			s.logger.Warn("graph persistence failed for restored node",
				"node_key", n.NodeKey, "error", err)
		}
	}
	for _, e := range edges {
		if err := s.persist.PersistEdge(ctx, e); err != nil {
			s.logger.Warn("graph persistence failed for restored edge",
				"edge_id", e.ID, "error", err)
		}
	}
}
