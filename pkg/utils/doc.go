// Package utils provides utility functions shared across the lattice library.
//
// This package contains helper functions for various operations including:
//   - Concurrent execution helpers (concurrent.go)
//   - Panic recovery for goroutines (recovery.go)
//   - Vector math and top-k selection (vector.go)
//   - General helper functions (helpers.go)
package utils
