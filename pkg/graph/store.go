// Package graph implements an in-memory, multi-tenant knowledge graph with
// weighted temporal edges, cycle prevention, traversal and snapshots.
package graph

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/latticehq/lattice/pkg/types"
)

// DefaultCycleDetectionDepth bounds the DFS used to reject cycle-closing
// edges. Paths longer than this are not searched.
const DefaultCycleDetectionDepth = 50

// Persistence mirrors graph mutations to an external store. Implementations
// are best-effort: the in-memory graph remains authoritative and failures are
// logged, not propagated.
type Persistence interface {
	PersistNode(ctx context.Context, node *types.GraphNode) error
	PersistEdge(ctx context.Context, edge *types.GraphEdge) error
	UpdateEdge(ctx context.Context, edge *types.GraphEdge) error
	Clear(ctx context.Context, tenantID, projectID string) error
}

// SnapshotArchive stores snapshots durably outside process memory.
type SnapshotArchive interface {
	Put(ctx context.Context, snapshot *types.GraphSnapshot) error
	Get(ctx context.Context, snapshotID string) (*types.GraphSnapshot, error)
	List(ctx context.Context, tenantID, projectID string, limit int) ([]*types.GraphSnapshot, error)
}

// EdgeSpec describes an edge to insert via AddEdge.
type EdgeSpec struct {
	SourceKey     string
	TargetKey     string
	Relation      string
	Weight        float64
	Confidence    float64
	Bidirectional bool
	ValidFrom     time.Time // zero means now
	ValidTo       *time.Time
	Properties    types.Properties
}

type partitionKey struct {
	tenantID  string
	projectID string
}

// partition holds one tenant/project graph. All maps are guarded by mu.
type partition struct {
	mu sync.RWMutex

	nodes   map[string]*types.GraphNode // node id -> node
	keyToID map[string]string           // node key -> node id
	edges   map[string]*types.GraphEdge // edge id -> edge
	out     map[string][]string         // node id -> sorted outgoing edge ids
	in      map[string][]string         // node id -> sorted incoming edge ids

	snapshots map[string]*types.GraphSnapshot // snapshot id -> snapshot
	snapNames map[string]string               // snapshot name -> snapshot id
}

func newPartition() *partition {
	return &partition{
		nodes:     make(map[string]*types.GraphNode),
		keyToID:   make(map[string]string),
		edges:     make(map[string]*types.GraphEdge),
		out:       make(map[string][]string),
		in:        make(map[string][]string),
		snapshots: make(map[string]*types.GraphSnapshot),
		snapNames: make(map[string]string),
	}
}

// Store is a partitioned knowledge graph. Partitions are independent: a
// tenant/project pair never observes another pair's nodes, edges or
// snapshots.
type Store struct {
	mu    sync.RWMutex
	parts map[partitionKey]*partition

	persist    Persistence
	archive    SnapshotArchive
	cycleDepth int
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersistence mirrors mutations to an external graph database.
func WithPersistence(p Persistence) StoreOption {
	return func(s *Store) { s.persist = p }
}

// WithSnapshotArchive stores snapshots durably in addition to memory.
func WithSnapshotArchive(a SnapshotArchive) StoreOption {
	return func(s *Store) { s.archive = a }
}

// WithCycleDetectionDepth overrides the cycle detection search bound.
func WithCycleDetectionDepth(depth int) StoreOption {
	return func(s *Store) {
		if depth > 0 {
			s.cycleDepth = depth
		}
	}
}

// WithLogger sets the structured logger used for persistence warnings.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		parts:      make(map[partitionKey]*partition),
		cycleDepth: DefaultCycleDetectionDepth,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getPartition returns the partition for a tenant/project pair, creating it
// on first use.
func (s *Store) getPartition(tenantID, projectID string) *partition {
	key := partitionKey{tenantID: tenantID, projectID: projectID}

	s.mu.RLock()
	p, ok := s.parts[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.parts[key]; ok {
		return p
	}
	p = newPartition()
	s.parts[key] = p
	return p
}

// peekPartition returns the partition if it already exists.
func (s *Store) peekPartition(tenantID, projectID string) (*partition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[partitionKey{tenantID: tenantID, projectID: projectID}]
	return p, ok
}

// AddNode inserts a node. Node keys are unique within a partition.
func (s *Store) AddNode(ctx context.Context, tenantID, projectID, nodeKey, label string, props types.Properties) (*types.GraphNode, error) {
	if nodeKey == "" {
		return nil, &ValidationError{Field: "node_key", Reason: "must not be empty"}
	}
	p := s.getPartition(tenantID, projectID)

	p.mu.Lock()
	if _, exists := p.keyToID[nodeKey]; exists {
		p.mu.Unlock()
		return nil, ErrDuplicateNode
	}
	node := &types.GraphNode{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		ProjectID:  projectID,
		NodeKey:    nodeKey,
		Label:      label,
		Properties: props.Clone(),
		CreatedAt:  time.Now().UTC(),
	}
	p.nodes[node.ID] = node
	p.keyToID[nodeKey] = node.ID
	p.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.PersistNode(ctx, node); err != nil {
			s.logger.Warn("graph persistence failed for node",
				"node_key", nodeKey, "error", err)
		}
	}
	return copyNode(node), nil
}

// ItemIDsProperty is the node property linking graph nodes to content items.
const ItemIDsProperty = "item_ids"

// LinkItems merges content item ids into a node's item linkage property so
// graph traversal can surface the items. Already-linked ids are ignored.
func (s *Store) LinkItems(ctx context.Context, tenantID, projectID, nodeKey string, itemIDs ...string) (*types.GraphNode, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrNodeNotFound
	}

	p.mu.Lock()
	id, ok := p.keyToID[nodeKey]
	if !ok {
		p.mu.Unlock()
		return nil, ErrNodeNotFound
	}
	node := p.nodes[id]
	if node.Properties == nil {
		node.Properties = types.Properties{}
	}
	existing := node.Properties[ItemIDsProperty].StringList()
	seen := make(map[string]struct{}, len(existing))
	values := make([]types.Value, 0, len(existing)+len(itemIDs))
	for _, itemID := range existing {
		seen[itemID] = struct{}{}
		values = append(values, types.String(itemID))
	}
	for _, itemID := range itemIDs {
		if itemID == "" {
			continue
		}
		if _, dup := seen[itemID]; dup {
			continue
		}
		seen[itemID] = struct{}{}
		values = append(values, types.String(itemID))
	}
	node.Properties[ItemIDsProperty] = types.ListOf(values...)
	updated := copyNode(node)
	p.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.PersistNode(ctx, updated); err != nil {
			s.logger.Warn("graph persistence failed for node",
				"node_key", nodeKey, "error", err)
		}
	}
	return updated, nil
}

// GetNode returns the node with the given key.
func (s *Store) GetNode(_ context.Context, tenantID, projectID, nodeKey string) (*types.GraphNode, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrNodeNotFound
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.keyToID[nodeKey]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return copyNode(p.nodes[id]), nil
}

// AddEdge inserts a directed (or bidirectional) weighted edge. The insert is
// rejected when it would violate a structural invariant: self-loops, weight
// or confidence outside [0,1], inverted validity windows, a duplicate active
// edge for the same (source, target, relation), or a cycle. Cycle detection
// is skipped for bidirectional edges, which are trivially cyclic.
func (s *Store) AddEdge(ctx context.Context, tenantID, projectID string, spec EdgeSpec) (*types.GraphEdge, error) {
	if spec.SourceKey == spec.TargetKey {
		return nil, ErrSelfLoop
	}
	if spec.Weight < 0 || spec.Weight > 1 {
		return nil, &ValidationError{Field: "weight", Reason: "must be within [0.0, 1.0]"}
	}
	if spec.Confidence < 0 || spec.Confidence > 1 {
		return nil, &ValidationError{Field: "confidence", Reason: "must be within [0.0, 1.0]"}
	}
	validFrom := spec.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now().UTC()
	}
	if spec.ValidTo != nil && spec.ValidTo.Before(validFrom) {
		return nil, &ValidationError{Field: "valid_to", Reason: "must not precede valid_from"}
	}

	p := s.getPartition(tenantID, projectID)

	p.mu.Lock()
	sourceID, ok := p.keyToID[spec.SourceKey]
	if !ok {
		p.mu.Unlock()
		return nil, ErrNodeNotFound
	}
	targetID, ok := p.keyToID[spec.TargetKey]
	if !ok {
		p.mu.Unlock()
		return nil, ErrNodeNotFound
	}
	for _, edgeID := range p.out[sourceID] {
		e := p.edges[edgeID]
		if e.IsActive && e.TargetNodeID == targetID && e.Relation == spec.Relation {
			p.mu.Unlock()
			return nil, ErrDuplicateActiveEdge
		}
	}
	if !spec.Bidirectional {
		if cyclePath := p.findCyclePath(targetID, sourceID, s.cycleDepth); cyclePath != nil {
			p.mu.Unlock()
			return nil, &CycleError{Path: cyclePath}
		}
	}
	edge := &types.GraphEdge{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		ProjectID:     projectID,
		SourceNodeID:  sourceID,
		TargetNodeID:  targetID,
		Relation:      spec.Relation,
		Weight:        spec.Weight,
		Confidence:    spec.Confidence,
		ValidFrom:     validFrom,
		ValidTo:       spec.ValidTo,
		IsActive:      true,
		Bidirectional: spec.Bidirectional,
		Properties:    spec.Properties.Clone(),
		CreatedAt:     time.Now().UTC(),
	}
	p.edges[edge.ID] = edge
	p.out[sourceID] = insertSorted(p.out[sourceID], edge.ID)
	p.in[targetID] = insertSorted(p.in[targetID], edge.ID)
	p.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.PersistEdge(ctx, edge); err != nil {
			s.logger.Warn("graph persistence failed for edge",
				"source", spec.SourceKey, "target", spec.TargetKey,
				"relation", spec.Relation, "error", err)
		}
	}
	return copyEdge(edge), nil
}

// GetEdge returns the edge with the given id.
func (s *Store) GetEdge(_ context.Context, tenantID, projectID, edgeID string) (*types.GraphEdge, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrEdgeNotFound
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.edges[edgeID]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	return copyEdge(e), nil
}

// DeactivateEdge marks an edge inactive without deleting it. Inactive edges
// are excluded from traversal, cycle detection and duplicate checks.
func (s *Store) DeactivateEdge(ctx context.Context, tenantID, projectID, edgeID string) (*types.GraphEdge, error) {
	return s.updateEdge(ctx, tenantID, projectID, edgeID, func(p *partition, e *types.GraphEdge) error {
		e.IsActive = false
		return nil
	})
}

// ActivateEdge reactivates a previously deactivated edge. Activation re-runs
// the duplicate and cycle checks so structural invariants keep holding.
func (s *Store) ActivateEdge(ctx context.Context, tenantID, projectID, edgeID string) (*types.GraphEdge, error) {
	return s.updateEdge(ctx, tenantID, projectID, edgeID, func(p *partition, e *types.GraphEdge) error {
		if e.IsActive {
			return nil
		}
		for _, otherID := range p.out[e.SourceNodeID] {
			other := p.edges[otherID]
			if other.ID != e.ID && other.IsActive && other.TargetNodeID == e.TargetNodeID && other.Relation == e.Relation {
				return ErrDuplicateActiveEdge
			}
		}
		if !e.Bidirectional {
			if cyclePath := p.findCyclePath(e.TargetNodeID, e.SourceNodeID, s.cycleDepth); cyclePath != nil {
				return &CycleError{Path: cyclePath}
			}
		}
		e.IsActive = true
		return nil
	})
}

// SetEdgeValidity updates an edge's temporal window.
func (s *Store) SetEdgeValidity(ctx context.Context, tenantID, projectID, edgeID string, validFrom time.Time, validTo *time.Time) (*types.GraphEdge, error) {
	if validTo != nil && validTo.Before(validFrom) {
		return nil, &ValidationError{Field: "valid_to", Reason: "must not precede valid_from"}
	}
	return s.updateEdge(ctx, tenantID, projectID, edgeID, func(p *partition, e *types.GraphEdge) error {
		e.ValidFrom = validFrom
		e.ValidTo = validTo
		return nil
	})
}

func (s *Store) updateEdge(ctx context.Context, tenantID, projectID, edgeID string, mutate func(*partition, *types.GraphEdge) error) (*types.GraphEdge, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrEdgeNotFound
	}

	p.mu.Lock()
	e, ok := p.edges[edgeID]
	if !ok {
		p.mu.Unlock()
		return nil, ErrEdgeNotFound
	}
	if err := mutate(p, e); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	updated := copyEdge(e)
	p.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.UpdateEdge(ctx, e); err != nil {
			s.logger.Warn("graph persistence failed for edge update",
				"edge_id", edgeID, "error", err)
		}
	}
	return updated, nil
}

// Statistics summarises a partition.
func (s *Store) Statistics(_ context.Context, tenantID, projectID string) (*types.GraphStatistics, error) {
	stats := &types.GraphStatistics{
		RelationCounts: make(map[string]int),
	}
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return stats, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return statsLocked(p), nil
}

// statsLocked computes partition statistics. Caller holds the partition lock.
func statsLocked(p *partition) *types.GraphStatistics {
	stats := &types.GraphStatistics{
		RelationCounts: make(map[string]int),
	}
	stats.NodeCount = len(p.nodes)
	stats.EdgeCount = len(p.edges)
	var weightSum float64
	for _, e := range p.edges {
		if e.IsActive {
			stats.ActiveEdgeCount++
			weightSum += e.Weight
			stats.RelationCounts[e.Relation]++
			if e.Bidirectional {
				stats.BidirectionalCount++
			}
		}
	}
	if stats.ActiveEdgeCount > 0 {
		stats.AverageWeight = weightSum / float64(stats.ActiveEdgeCount)
	}
	return stats
}

// NodeDegree returns in, out and weighted degree counts over active edges.
// Bidirectional edges count toward both directions on both endpoints.
func (s *Store) NodeDegree(_ context.Context, tenantID, projectID, nodeKey string) (*types.NodeDegree, error) {
	p, ok := s.peekPartition(tenantID, projectID)
	if !ok {
		return nil, ErrNodeNotFound
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.keyToID[nodeKey]
	if !ok {
		return nil, ErrNodeNotFound
	}
	deg := &types.NodeDegree{NodeKey: nodeKey}
	for _, edgeID := range p.out[id] {
		e := p.edges[edgeID]
		if !e.IsActive {
			continue
		}
		deg.Out++
		deg.WeightedOut += e.Weight
		if e.Bidirectional {
			deg.In++
			deg.WeightedIn += e.Weight
		}
	}
	for _, edgeID := range p.in[id] {
		e := p.edges[edgeID]
		if !e.IsActive {
			continue
		}
		deg.In++
		deg.WeightedIn += e.Weight
		if e.Bidirectional {
			deg.Out++
			deg.WeightedOut += e.Weight
		}
	}
	deg.Total = deg.In + deg.Out
	return deg, nil
}

func copyNode(n *types.GraphNode) *types.GraphNode {
	c := *n
	c.Properties = n.Properties.Clone()
	return &c
}

func copyEdge(e *types.GraphEdge) *types.GraphEdge {
	c := *e
	if e.ValidTo != nil {
		t := *e.ValidTo
		c.ValidTo = &t
	}
	c.Properties = e.Properties.Clone()
	return &c
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
