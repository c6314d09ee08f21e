package lattice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/search"
	"github.com/latticehq/lattice/pkg/utils"
)

// UpsertItem adds or replaces a content item in the corpus. When an embedding
// client is configured and the item carries no embedding, the content is
// embedded here so vector search covers it immediately. Concepts that resolve
// to existing graph nodes are linked to the item for graph traversal.
func (e *Engine) UpsertItem(ctx context.Context, item *search.Item) error {
	if item == nil || item.ItemID == "" {
		return errors.New("item and item_id are required")
	}
	if item.TenantID == "" || item.ProjectID == "" {
		return ErrMissingTenant
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if e.embedder != nil && len(item.Embedding) == 0 && item.Content != "" {
		vec, err := e.embedder.EmbedSingle(ctx, item.Content)
		if err != nil {
			return fmt.Errorf("embedding item %s: %w", item.ItemID, err)
		}
		item.Embedding = utils.NormalizeL2Float32(vec)
	}

	e.corpus.Upsert(ctx, item)

	for _, concept := range item.Concepts {
		key := conceptKey(concept)
		if key == "" {
			continue
		}
		if _, err := e.store.LinkItems(ctx, item.TenantID, item.ProjectID, key, item.ItemID); err != nil {
			if errors.Is(err, graph.ErrNodeNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetItem returns a stored item.
func (e *Engine) GetItem(ctx context.Context, tenantID, projectID, itemID string) (*search.Item, error) {
	item := e.corpus.Get(ctx, tenantID, projectID, itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// DeleteItem removes an item from the corpus. Graph nodes keep their item
// link; traversal drops ids that no longer resolve.
func (e *Engine) DeleteItem(ctx context.Context, tenantID, projectID, itemID string) {
	e.corpus.Delete(ctx, tenantID, projectID, itemID)
}

// ItemCount returns the number of items stored for a partition.
func (e *Engine) ItemCount(ctx context.Context, tenantID, projectID string) int {
	return e.corpus.Count(ctx, tenantID, projectID)
}

// conceptKey slugifies a concept name into the node key convention used by
// the graph strategy's start node resolution.
func conceptKey(concept string) string {
	return strings.Join(search.Tokenize(concept), "_")
}
