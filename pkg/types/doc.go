// Package types defines the shared data structures of the lattice engine:
// search requests, responses and strategy types, knowledge graph nodes,
// edges, snapshots and traversal results, and the tagged property values
// carried by graph entities.
package types
