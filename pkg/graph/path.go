package graph

import (
	"context"

	"github.com/latticehq/lattice/pkg/types"
)

// DefaultPathDepth bounds shortest path searches when no limit is given.
const DefaultPathDepth = 5

// ShortestPath finds the acyclic path from startKey to endKey minimising the
// sum of (1 - weight) over its edges, considering every acyclic path of at
// most maxDepth hops. Strong edges therefore cost little and a longer path
// of high-weight edges can beat a direct weak edge. Ties are broken by edge
// count, then by the lexicographic node key sequence.
//
// The search is deliberately exhaustive within the depth bound rather than a
// frontier algorithm, so the bound is the contract: raising it changes which
// paths are considered.
func (s *Store) ShortestPath(ctx context.Context, tenantID, projectID, startKey, endKey string, opts types.TraversalOptions) (*types.GraphPath, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrNodeNotFound
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultPathDepth
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	startID, ok := p.keyToID[startKey]
	if !ok {
		return nil, ErrNodeNotFound
	}
	endID, ok := p.keyToID[endKey]
	if !ok {
		return nil, ErrNodeNotFound
	}
	if startID == endID {
		node := p.nodes[startID]
		return &types.GraphPath{
			NodeKeys:   []string{node.NodeKey},
			NodeLabels: []string{node.Label},
		}, nil
	}

	type walk struct {
		nodeID   string
		path     []string // node ids
		distance float64
	}
	var best *walk

	better := func(candidate *walk) bool {
		if best == nil {
			return true
		}
		if candidate.distance != best.distance {
			return candidate.distance < best.distance
		}
		if len(candidate.path) != len(best.path) {
			return len(candidate.path) < len(best.path)
		}
		return p.pathKeysLess(candidate.path, best.path)
	}

	queue := []walk{{nodeID: startID, path: []string{startID}}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)-1 >= maxDepth {
			continue
		}
		for _, step := range p.neighbors(cur.nodeID, opts) {
			if containsID(cur.path, step.nodeID) {
				continue
			}
			path := make([]string, len(cur.path)+1)
			copy(path, cur.path)
			path[len(cur.path)] = step.nodeID
			next := walk{
				nodeID:   step.nodeID,
				path:     path,
				distance: cur.distance + (1.0 - step.weight),
			}
			if step.nodeID == endID {
				if better(&next) {
					b := next
					best = &b
				}
				continue
			}
			if best != nil && next.distance > best.distance {
				continue
			}
			queue = append(queue, next)
		}
	}

	if best == nil {
		return nil, ErrPathNotFound
	}
	result := &types.GraphPath{
		NodeKeys:      make([]string, len(best.path)),
		NodeLabels:    make([]string, len(best.path)),
		EdgeCount:     len(best.path) - 1,
		TotalDistance: best.distance,
	}
	for i, id := range best.path {
		node := p.nodes[id]
		result.NodeKeys[i] = node.NodeKey
		result.NodeLabels[i] = node.Label
	}
	return result, nil
}

func (p *partition) pathKeysLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		ka, kb := p.nodes[a[i]].NodeKey, p.nodes[b[i]].NodeKey
		if ka != kb {
			return ka < kb
		}
	}
	return len(a) < len(b)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
