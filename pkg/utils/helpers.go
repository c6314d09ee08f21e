package utils

import (
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit      = 20
	DefaultSemaphoreLimit = 20
)

// GetSemaphoreLimit returns the semaphore limit from environment variable or default
func GetSemaphoreLimit() int {
	val := os.Getenv("SEMAPHORE_LIMIT")
	if val == "" {
		return DefaultSemaphoreLimit
	}
	limit, err := strconv.Atoi(val)
	if err != nil {
		return DefaultSemaphoreLimit
	}
	return limit
}

// NormalizeL2Float32 returns the L2-normalized copy of an embedding.
// A zero vector is returned unchanged.
func NormalizeL2Float32(embedding []float32) []float32 {
	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, v := range embedding {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}

// GenerateUUID returns a new random UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}

// SortStringSlice sorts a string slice in place.
func SortStringSlice(slice []string) {
	sort.Strings(slice)
}

// RemoveDuplicateStrings returns a new slice with duplicates removed,
// preserving first-seen order.
func RemoveDuplicateStrings(slice []string) []string {
	seen := make(map[string]struct{}, len(slice))
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}
