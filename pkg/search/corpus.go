// Package search implements the four retrieval strategies, query analysis,
// score fusion, re-ranking and the windowed result cache behind hybrid
// search.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/latticehq/lattice/pkg/types"
)

// Item is a searchable content item held by the corpus. Embedding and
// Concepts are populated at ingest time.
type Item struct {
	ItemID     string           `json:"item_id"`
	TenantID   string           `json:"tenant_id"`
	ProjectID  string           `json:"project_id"`
	Content    string           `json:"content"`
	Tags       []string         `json:"tags,omitempty"`
	Importance float64          `json:"importance"`
	Concepts   []string         `json:"concepts,omitempty"`
	Embedding  []float32        `json:"-"`
	Metadata   types.Properties `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

type corpusKey struct {
	tenantID  string
	projectID string
}

// Corpus is an in-memory, tenant-partitioned item store shared read-only by
// the strategies at query time.
type Corpus struct {
	mu    sync.RWMutex
	items map[corpusKey]map[string]*Item
}

// NewCorpus creates an empty Corpus.
func NewCorpus() *Corpus {
	return &Corpus{items: make(map[corpusKey]map[string]*Item)}
}

// Upsert inserts or replaces an item.
func (c *Corpus) Upsert(_ context.Context, item *Item) {
	key := corpusKey{tenantID: item.TenantID, projectID: item.ProjectID}
	copied := *item
	if item.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	part, ok := c.items[key]
	if !ok {
		part = make(map[string]*Item)
		c.items[key] = part
	}
	part[item.ItemID] = &copied
}

// Get returns an item by id, or nil when absent.
func (c *Corpus) Get(_ context.Context, tenantID, projectID, itemID string) *Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	part, ok := c.items[corpusKey{tenantID: tenantID, projectID: projectID}]
	if !ok {
		return nil
	}
	item, ok := part[itemID]
	if !ok {
		return nil
	}
	copied := *item
	return &copied
}

// Delete removes an item. Removing an absent item is a no-op.
func (c *Corpus) Delete(_ context.Context, tenantID, projectID, itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if part, ok := c.items[corpusKey{tenantID: tenantID, projectID: projectID}]; ok {
		delete(part, itemID)
	}
}

// Count returns the number of items in a partition.
func (c *Corpus) Count(_ context.Context, tenantID, projectID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items[corpusKey{tenantID: tenantID, projectID: projectID}])
}

// Snapshot returns the partition's items that pass the given filters, sorted
// by item id so strategy scans are deterministic. The returned items are
// copies.
func (c *Corpus) Snapshot(_ context.Context, tenantID, projectID string, filters types.SearchFilters) []*Item {
	c.mu.RLock()
	part := c.items[corpusKey{tenantID: tenantID, projectID: projectID}]
	matched := make([]*Item, 0, len(part))
	for _, item := range part {
		if !itemPassesFilters(item, filters) {
			continue
		}
		copied := *item
		matched = append(matched, &copied)
	}
	c.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ItemID < matched[j].ItemID })
	return matched
}

func itemPassesFilters(item *Item, filters types.SearchFilters) bool {
	if filters.MinImportance > 0 && item.Importance < filters.MinImportance {
		return false
	}
	if filters.Since != nil && item.CreatedAt.Before(*filters.Since) {
		return false
	}
	if len(filters.Tags) > 0 {
		found := false
		for _, want := range filters.Tags {
			for _, tag := range item.Tags {
				if strings.EqualFold(tag, want) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
