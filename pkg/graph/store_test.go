package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

const (
	testTenant  = "tenant-1"
	testProject = "project-1"
)

func addNodes(t *testing.T, s *Store, keys ...string) {
	t.Helper()
	ctx := context.Background()
	for _, key := range keys {
		_, err := s.AddNode(ctx, testTenant, testProject, key, "Entity", nil)
		require.NoError(t, err)
	}
}

func addEdge(t *testing.T, s *Store, source, target string, weight float64) *types.GraphEdge {
	t.Helper()
	edge, err := s.AddEdge(context.Background(), testTenant, testProject, EdgeSpec{
		SourceKey:  source,
		TargetKey:  target,
		Relation:   "relates_to",
		Weight:     weight,
		Confidence: 0.8,
	})
	require.NoError(t, err)
	return edge
}

func TestAddNode(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	node, err := s.AddNode(ctx, testTenant, testProject, "alpha", "Concept", types.Properties{
		"domain": types.String("physics"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "alpha", node.NodeKey)
	assert.Equal(t, "Concept", node.Label)

	_, err = s.AddNode(ctx, testTenant, testProject, "alpha", "Concept", nil)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	// Same key in a different partition is fine.
	_, err = s.AddNode(ctx, "tenant-2", testProject, "alpha", "Concept", nil)
	assert.NoError(t, err)

	_, err = s.AddNode(ctx, testTenant, testProject, "", "Concept", nil)
	assert.ErrorIs(t, err, &ValidationError{})
}

func TestAddEdgeValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b")

	tests := []struct {
		name    string
		spec    EdgeSpec
		wantErr error
	}{
		{
			name:    "self loop",
			spec:    EdgeSpec{SourceKey: "a", TargetKey: "a", Relation: "r", Weight: 0.5, Confidence: 0.5},
			wantErr: ErrSelfLoop,
		},
		{
			name:    "weight above range",
			spec:    EdgeSpec{SourceKey: "a", TargetKey: "b", Relation: "r", Weight: 1.5, Confidence: 0.5},
			wantErr: &ValidationError{},
		},
		{
			name:    "negative confidence",
			spec:    EdgeSpec{SourceKey: "a", TargetKey: "b", Relation: "r", Weight: 0.5, Confidence: -0.1},
			wantErr: &ValidationError{},
		},
		{
			name:    "unknown source",
			spec:    EdgeSpec{SourceKey: "missing", TargetKey: "b", Relation: "r", Weight: 0.5, Confidence: 0.5},
			wantErr: ErrNodeNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.AddEdge(ctx, testTenant, testProject, tc.spec)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// Inverted validity window.
	from := time.Now().UTC()
	to := from.Add(-time.Hour)
	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "a", TargetKey: "b", Relation: "r",
		Weight: 0.5, Confidence: 0.5,
		ValidFrom: from, ValidTo: &to,
	})
	assert.ErrorIs(t, err, &ValidationError{})
}

func TestAddEdgeDuplicateActive(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b")
	edge := addEdge(t, s, "a", "b", 0.7)

	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "a", TargetKey: "b", Relation: "relates_to",
		Weight: 0.9, Confidence: 0.8,
	})
	assert.ErrorIs(t, err, ErrDuplicateActiveEdge)

	// A different relation between the same nodes is allowed.
	_, err = s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "a", TargetKey: "b", Relation: "depends_on",
		Weight: 0.9, Confidence: 0.8,
	})
	assert.NoError(t, err)

	// Deactivating the first edge frees the triple for re-insertion.
	_, err = s.DeactivateEdge(ctx, testTenant, testProject, edge.ID)
	require.NoError(t, err)
	_, err = s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "a", TargetKey: "b", Relation: "relates_to",
		Weight: 0.9, Confidence: 0.8,
	})
	assert.NoError(t, err)
}

func TestCycleDetection(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "A", "B", "C")
	addEdge(t, s, "A", "B", 0.8)
	addEdge(t, s, "B", "C", 0.8)

	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "C", TargetKey: "A", Relation: "relates_to",
		Weight: 0.8, Confidence: 0.8,
	})
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"A", "B", "C"}, cycleErr.Path)
}

func TestCycleDetectionSkipsBidirectional(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "A", "B")
	addEdge(t, s, "A", "B", 0.8)

	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "B", TargetKey: "A", Relation: "linked_with",
		Weight: 0.8, Confidence: 0.8, Bidirectional: true,
	})
	assert.NoError(t, err)
}

func TestCycleDetectionIgnoresInactiveEdges(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "A", "B", "C")
	addEdge(t, s, "A", "B", 0.8)
	middle := addEdge(t, s, "B", "C", 0.8)

	_, err := s.DeactivateEdge(ctx, testTenant, testProject, middle.ID)
	require.NoError(t, err)

	// With B->C inactive, C->A no longer closes a cycle.
	_, err = s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "C", TargetKey: "A", Relation: "relates_to",
		Weight: 0.8, Confidence: 0.8,
	})
	assert.NoError(t, err)

	// Reactivating B->C would now close the cycle, so it is rejected.
	_, err = s.ActivateEdge(ctx, testTenant, testProject, middle.ID)
	assert.ErrorIs(t, err, &CycleError{})
}

func TestCycleDetectionDepthBound(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithCycleDetectionDepth(2))
	addNodes(t, s, "A", "B", "C", "D")
	addEdge(t, s, "A", "B", 0.8)
	addEdge(t, s, "B", "C", 0.8)
	addEdge(t, s, "C", "D", 0.8)

	// The cycle-closing path A->B->C->D is three hops, beyond the bound.
	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "D", TargetKey: "A", Relation: "relates_to",
		Weight: 0.8, Confidence: 0.8,
	})
	assert.NoError(t, err)
}

func TestTraverseBFS(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "root", "left", "right", "leaf")
	addEdge(t, s, "root", "left", 0.5)
	addEdge(t, s, "root", "right", 0.9)
	addEdge(t, s, "left", "leaf", 0.4)

	results, err := s.Traverse(ctx, testTenant, testProject, "root", types.TraversalOptions{
		Algorithm: types.TraversalBFS,
		MaxDepth:  2,
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "root", results[0].Node.NodeKey)
	assert.Equal(t, 0, results[0].Depth)
	assert.Equal(t, 1.0, results[0].CumulativeWeight)

	// BFS reports depth-1 nodes before depth-2 nodes.
	depths := []int{results[1].Depth, results[2].Depth, results[3].Depth}
	assert.Equal(t, []int{1, 1, 2}, depths)

	for _, r := range results {
		if r.Node.NodeKey == "leaf" {
			assert.Equal(t, []string{"root", "left", "leaf"}, r.Path)
			assert.InDelta(t, 0.2, r.CumulativeWeight, 1e-9)
		}
	}
}

func TestTraverseDFS(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "root", "a", "b", "deep")
	first := addEdge(t, s, "root", "a", 0.5)
	second := addEdge(t, s, "root", "b", 0.5)
	addEdge(t, s, "a", "deep", 0.5)

	results, err := s.Traverse(ctx, testTenant, testProject, "root", types.TraversalOptions{
		Algorithm: types.TraversalDFS,
		MaxDepth:  3,
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	// DFS exhausts the branch behind the lower-ordered edge first.
	wantFirst := "a"
	if second.ID < first.ID {
		wantFirst = "b"
	}
	assert.Equal(t, wantFirst, results[1].Node.NodeKey)
	if wantFirst == "a" {
		assert.Equal(t, "deep", results[2].Node.NodeKey)
		assert.Equal(t, "b", results[3].Node.NodeKey)
	}
}

func TestTraversePathsNeverRepeatNodes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "x", "y", "z")
	addEdge(t, s, "x", "y", 0.5)
	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "y", TargetKey: "z", Relation: "linked_with",
		Weight: 0.5, Confidence: 0.5, Bidirectional: true,
	})
	require.NoError(t, err)

	results, err := s.Traverse(ctx, testTenant, testProject, "x", types.TraversalOptions{MaxDepth: 10})
	require.NoError(t, err)
	for _, r := range results {
		seen := make(map[string]bool)
		for _, key := range r.Path {
			assert.False(t, seen[key], "path %v repeats %s", r.Path, key)
			seen[key] = true
		}
	}
}

func TestTraverseFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "hub", "strong", "weak", "typed")
	addEdge(t, s, "hub", "strong", 0.9)
	addEdge(t, s, "hub", "weak", 0.2)
	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "hub", TargetKey: "typed", Relation: "authored_by",
		Weight: 0.9, Confidence: 0.8,
	})
	require.NoError(t, err)

	results, err := s.Traverse(ctx, testTenant, testProject, "hub", types.TraversalOptions{
		MaxDepth:  1,
		MinWeight: 0.5,
	})
	require.NoError(t, err)
	keys := resultKeys(results)
	assert.NotContains(t, keys, "weak")
	assert.Contains(t, keys, "strong")

	results, err = s.Traverse(ctx, testTenant, testProject, "hub", types.TraversalOptions{
		MaxDepth:       1,
		RelationFilter: []string{"authored_by"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hub", "typed"}, resultKeys(results))

	results, err = s.Traverse(ctx, testTenant, testProject, "hub", types.TraversalOptions{
		MaxDepth:       1,
		RelationFilter: []string{"authored_by", "relates_to"},
	})
	require.NoError(t, err)
	keys = resultKeys(results)
	assert.Len(t, keys, 4)
	assert.Contains(t, keys, "typed")
	assert.Contains(t, keys, "strong")

	results, err = s.Traverse(ctx, testTenant, testProject, "hub", types.TraversalOptions{
		MaxDepth:       1,
		RelationFilter: []string{"cites"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hub"}, resultKeys(results))
}

func TestTraverseTemporalFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b", "c")

	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "a", TargetKey: "b", Relation: "r",
		Weight: 0.5, Confidence: 0.5,
		ValidFrom: jan, ValidTo: &march,
	})
	require.NoError(t, err)
	_, err = s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "a", TargetKey: "c", Relation: "r",
		Weight: 0.5, Confidence: 0.5,
		ValidFrom: june,
	})
	require.NoError(t, err)

	// In February only a->b is valid.
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	results, err := s.Traverse(ctx, testTenant, testProject, "a", types.TraversalOptions{
		MaxDepth:    1,
		AtTimestamp: feb,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultKeys(results))

	// In July only a->c is valid.
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	results, err = s.Traverse(ctx, testTenant, testProject, "a", types.TraversalOptions{
		MaxDepth:    1,
		AtTimestamp: july,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, resultKeys(results))
}

func TestShortestPathPrefersStrongEdges(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "start", "mid", "end")
	// Direct weak edge costs 1-0.1 = 0.9. The two-hop strong route costs
	// (1-0.9)+(1-0.9) = 0.2 and must win.
	addEdge(t, s, "start", "end", 0.1)
	addEdge(t, s, "start", "mid", 0.9)
	addEdge(t, s, "mid", "end", 0.9)

	path, err := s.ShortestPath(ctx, testTenant, testProject, "start", "end", types.TraversalOptions{MaxDepth: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "mid", "end"}, path.NodeKeys)
	assert.Equal(t, 2, path.EdgeCount)
	assert.InDelta(t, 0.2, path.TotalDistance, 1e-9)
}

func TestShortestPathRespectsDepthBound(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b", "c", "d")
	addEdge(t, s, "a", "b", 0.9)
	addEdge(t, s, "b", "c", 0.9)
	addEdge(t, s, "c", "d", 0.9)

	_, err := s.ShortestPath(ctx, testTenant, testProject, "a", "d", types.TraversalOptions{MaxDepth: 2})
	assert.ErrorIs(t, err, ErrPathNotFound)

	path, err := s.ShortestPath(ctx, testTenant, testProject, "a", "d", types.TraversalOptions{MaxDepth: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, path.EdgeCount)
}

func TestShortestPathSameNode(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "solo")

	path, err := s.ShortestPath(ctx, testTenant, testProject, "solo", "solo", types.TraversalOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, path.NodeKeys)
	assert.Zero(t, path.EdgeCount)
	assert.Zero(t, path.TotalDistance)
}

func TestConnectedNodes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b", "c", "d")
	addEdge(t, s, "a", "b", 0.5)
	addEdge(t, s, "c", "b", 0.5) // reachable from a only undirected
	addEdge(t, s, "c", "d", 0.5)

	connected, err := s.ConnectedNodes(ctx, testTenant, testProject, "a", 2)
	require.NoError(t, err)
	keys := make([]string, len(connected))
	for i, c := range connected {
		keys[i] = c.NodeKey
	}
	assert.ElementsMatch(t, []string{"b", "c"}, keys)
	for _, c := range connected {
		if c.NodeKey == "c" {
			assert.Equal(t, 2, c.Distance)
		}
	}
}

func TestNodeDegree(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "hub", "a", "b", "c")
	addEdge(t, s, "hub", "a", 0.6)
	addEdge(t, s, "b", "hub", 0.4)
	_, err := s.AddEdge(ctx, testTenant, testProject, EdgeSpec{
		SourceKey: "hub", TargetKey: "c", Relation: "linked_with",
		Weight: 0.5, Confidence: 0.5, Bidirectional: true,
	})
	require.NoError(t, err)

	deg, err := s.NodeDegree(ctx, testTenant, testProject, "hub")
	require.NoError(t, err)
	assert.Equal(t, 2, deg.Out)
	assert.Equal(t, 2, deg.In)
	assert.Equal(t, 4, deg.Total)
	assert.InDelta(t, 1.1, deg.WeightedOut, 1e-9)
	assert.InDelta(t, 0.9, deg.WeightedIn, 1e-9)
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b", "c")
	addEdge(t, s, "a", "b", 0.4)
	edge := addEdge(t, s, "b", "c", 0.8)
	_, err := s.DeactivateEdge(ctx, testTenant, testProject, edge.ID)
	require.NoError(t, err)

	stats, err := s.Statistics(ctx, testTenant, testProject)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 2, stats.EdgeCount)
	assert.Equal(t, 1, stats.ActiveEdgeCount)
	assert.InDelta(t, 0.4, stats.AverageWeight, 1e-9)
	assert.Equal(t, 1, stats.RelationCounts["relates_to"])
}

func TestSnapshotCreateAndRestoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b")
	addEdge(t, s, "a", "b", 0.7)

	snap, err := s.CreateSnapshot(ctx, testTenant, testProject, "before")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.NodeCount)
	assert.Equal(t, 1, snap.EdgeCount)

	_, err = s.CreateSnapshot(ctx, testTenant, testProject, "before")
	assert.ErrorIs(t, err, ErrSnapshotExists)

	// Mutate after the snapshot, then restore with clear.
	addNodes(t, s, "c")
	addEdge(t, s, "b", "c", 0.5)

	result, err := s.RestoreSnapshot(ctx, testTenant, testProject, snap.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NodesRestored)
	assert.Equal(t, 1, result.EdgesRestored)

	_, err = s.GetNode(ctx, testTenant, testProject, "c")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	stats, err := s.Statistics(ctx, testTenant, testProject)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
}

func TestSnapshotRestoreMergeSkipsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b")
	addEdge(t, s, "a", "b", 0.7)

	snap, err := s.CreateSnapshot(ctx, testTenant, testProject, "baseline")
	require.NoError(t, err)

	result, err := s.RestoreSnapshot(ctx, testTenant, testProject, snap.ID, false)
	require.NoError(t, err)
	assert.Zero(t, result.NodesRestored)
	assert.Equal(t, 2, result.NodesSkipped)
	assert.Zero(t, result.EdgesRestored)

	_, err = s.RestoreSnapshot(ctx, testTenant, testProject, "missing", false)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSetEdgeValidity(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "a", "b")
	edge := addEdge(t, s, "a", "b", 0.7)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	updated, err := s.SetEdgeValidity(ctx, testTenant, testProject, edge.ID, from, &to)
	require.NoError(t, err)
	assert.Equal(t, from, updated.ValidFrom)
	require.NotNil(t, updated.ValidTo)
	assert.Equal(t, to, *updated.ValidTo)

	_, err = s.SetEdgeValidity(ctx, testTenant, testProject, edge.ID, to, &from)
	assert.ErrorIs(t, err, &ValidationError{})

	_, err = s.SetEdgeValidity(ctx, testTenant, testProject, "missing", from, nil)
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestPartitionIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addNodes(t, s, "shared")

	_, err := s.GetNode(ctx, "other-tenant", testProject, "shared")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = s.Traverse(ctx, "other-tenant", testProject, "shared", types.TraversalOptions{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestPersistenceFailuresDoNotPropagate(t *testing.T) {
	s := NewStore(WithPersistence(&failingPersistence{}))
	addNodes(t, s, "a", "b")
	edge := addEdge(t, s, "a", "b", 0.5)
	assert.NotNil(t, edge)
}

type failingPersistence struct{}

func (f *failingPersistence) PersistNode(context.Context, *types.GraphNode) error {
	return errors.New("backend down")
}

func (f *failingPersistence) PersistEdge(context.Context, *types.GraphEdge) error {
	return errors.New("backend down")
}

func (f *failingPersistence) UpdateEdge(context.Context, *types.GraphEdge) error {
	return errors.New("backend down")
}

func (f *failingPersistence) Clear(context.Context, string, string) error {
	return errors.New("backend down")
}

func resultKeys(results []types.TraversalResult) []string {
	keys := make([]string, len(results))
	for i, r := range results {
		keys[i] = r.Node.NodeKey
	}
	return keys
}
