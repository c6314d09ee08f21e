package graph

import (
	"context"
	"slices"

	"github.com/latticehq/lattice/pkg/types"
)

// DefaultTraversalDepth is the hop bound applied when options leave
// MaxDepth unset.
const DefaultTraversalDepth = 3

// Traverse walks the graph from a start node and returns every node reached
// within the depth bound, each reported once at its first discovery together
// with the path taken and the product of edge weights along it. BFS discovers
// nodes in ascending depth order; DFS follows each branch to the bound before
// backtracking. Edges are followed forward, plus backward when bidirectional.
//
// Inactive edges are always skipped. When options carry AtTimestamp, edges
// whose validity window excludes that instant are skipped too.
func (s *Store) Traverse(ctx context.Context, tenantID, projectID, startKey string, opts types.TraversalOptions) ([]types.TraversalResult, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrNodeNotFound
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultTraversalDepth
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	startID, ok := p.keyToID[startKey]
	if !ok {
		return nil, ErrNodeNotFound
	}

	type frame struct {
		nodeID string
		depth  int
		path   []string
		weight float64
	}
	start := frame{nodeID: startID, depth: 0, path: []string{startKey}, weight: 1.0}

	var results []types.TraversalResult
	visited := map[string]bool{startID: true}
	emit := func(f frame) {
		if err := ctx.Err(); err != nil {
			return
		}
		results = append(results, types.TraversalResult{
			Node:             copyNode(p.nodes[f.nodeID]),
			Depth:            f.depth,
			Path:             append([]string(nil), f.path...),
			CumulativeWeight: f.weight,
		})
	}
	emit(start)

	expand := func(f frame) []frame {
		if f.depth >= maxDepth {
			return nil
		}
		var next []frame
		for _, step := range p.neighbors(f.nodeID, opts) {
			if visited[step.nodeID] {
				continue
			}
			path := make([]string, len(f.path)+1)
			copy(path, f.path)
			path[len(f.path)] = p.nodes[step.nodeID].NodeKey
			next = append(next, frame{
				nodeID: step.nodeID,
				depth:  f.depth + 1,
				path:   path,
				weight: f.weight * step.weight,
			})
		}
		return next
	}

	switch opts.Algorithm {
	case types.TraversalDFS:
		stack := []frame{start}
		first := true
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !first {
				if visited[f.nodeID] {
					continue
				}
				visited[f.nodeID] = true
				emit(f)
			}
			first = false
			next := expand(f)
			// Push in reverse so the lowest-ordered edge is explored first.
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, next[i])
			}
		}
	default: // BFS
		queue := []frame{start}
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			for _, n := range expand(f) {
				visited[n.nodeID] = true
				emit(n)
				queue = append(queue, n)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ConnectedNodes returns every node reachable from the given node within
// maxDepth hops, treating edges as undirected, with the hop distance at which
// each was first reached.
func (s *Store) ConnectedNodes(_ context.Context, tenantID, projectID, nodeKey string, maxDepth int) ([]types.ConnectedNode, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrNodeNotFound
	}
	if maxDepth <= 0 {
		maxDepth = DefaultTraversalDepth
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	startID, ok := p.keyToID[nodeKey]
	if !ok {
		return nil, ErrNodeNotFound
	}

	type item struct {
		nodeID string
		depth  int
	}
	var connected []types.ConnectedNode
	visited := map[string]bool{startID: true}
	queue := []item{{nodeID: startID, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edgeID := range p.undirectedEdges(cur.nodeID) {
			e := p.edges[edgeID]
			if !e.IsActive {
				continue
			}
			next := e.TargetNodeID
			if next == cur.nodeID {
				next = e.SourceNodeID
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			connected = append(connected, types.ConnectedNode{
				NodeKey:  p.nodes[next].NodeKey,
				Distance: cur.depth + 1,
			})
			queue = append(queue, item{nodeID: next, depth: cur.depth + 1})
		}
	}
	return connected, nil
}

type neighborStep struct {
	nodeID string
	weight float64
}

// neighbors lists traversable neighbor steps from a node in deterministic
// edge-id order, applying the active, temporal, relation and weight filters.
func (p *partition) neighbors(nodeID string, opts types.TraversalOptions) []neighborStep {
	var steps []neighborStep
	appendStep := func(e *types.GraphEdge, next string) {
		if !p.edgePassesFilters(e, opts) {
			return
		}
		steps = append(steps, neighborStep{nodeID: next, weight: e.Weight})
	}
	for _, edgeID := range p.out[nodeID] {
		e := p.edges[edgeID]
		appendStep(e, e.TargetNodeID)
	}
	for _, edgeID := range p.in[nodeID] {
		e := p.edges[edgeID]
		if e.Bidirectional {
			appendStep(e, e.SourceNodeID)
		}
	}
	return steps
}

func (p *partition) edgePassesFilters(e *types.GraphEdge, opts types.TraversalOptions) bool {
	if !e.IsActive {
		return false
	}
	if !opts.AtTimestamp.IsZero() && !e.ValidAt(opts.AtTimestamp) {
		return false
	}
	if len(opts.RelationFilter) > 0 && !slices.Contains(opts.RelationFilter, e.Relation) {
		return false
	}
	if opts.MinWeight > 0 && e.Weight < opts.MinWeight {
		return false
	}
	return true
}

// undirectedEdges merges a node's out and in edge id lists, preserving
// sorted order.
func (p *partition) undirectedEdges(nodeID string) []string {
	out, in := p.out[nodeID], p.in[nodeID]
	merged := make([]string, 0, len(out)+len(in))
	i, j := 0, 0
	for i < len(out) && j < len(in) {
		if out[i] <= in[j] {
			merged = append(merged, out[i])
			i++
		} else {
			merged = append(merged, in[j])
			j++
		}
	}
	merged = append(merged, out[i:]...)
	merged = append(merged, in[j:]...)
	return merged
}
