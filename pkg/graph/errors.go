package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Structural violations are rejected synchronously and never auto-repaired.
var (
	// ErrSelfLoop indicates an edge whose source and target are the same node.
	ErrSelfLoop = errors.New("self-loop edges are not allowed")

	// ErrDuplicateActiveEdge indicates a second active edge for the same
	// (source, target, relation) triple.
	ErrDuplicateActiveEdge = errors.New("an active edge already exists for this source, target and relation")

	// ErrDuplicateNode indicates a node key collision within a partition.
	ErrDuplicateNode = errors.New("a node with this key already exists")

	// ErrNodeNotFound indicates a lookup for an unknown node key or id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates a lookup for an unknown edge id.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrSnapshotNotFound indicates a restore or lookup for an unknown snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists indicates a snapshot name collision within a partition.
	ErrSnapshotExists = errors.New("a snapshot with this name already exists")

	// ErrPathNotFound indicates no acyclic path within the depth bound.
	ErrPathNotFound = errors.New("no path found within depth bound")
)

// CycleError reports that inserting an edge would close a cycle. Path holds
// the node keys of the discovered path from the proposed edge's target back
// to its source.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("edge would create a cycle: %s", strings.Join(e.Path, " -> "))
}

// Is implements errors.Is support for CycleError.
func (e *CycleError) Is(target error) bool {
	_, ok := target.(*CycleError)
	return ok
}

// ValidationError reports an edge or node field outside its allowed range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is implements errors.Is support for ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}
