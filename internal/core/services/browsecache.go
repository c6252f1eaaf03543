package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
)

// BrowseCache rebuilds the per-entity document and appearance counts used
// by the browse views.
type BrowseCache struct {
	index driven.IndexStore
}

var _ driving.CacheBuilder = (*BrowseCache)(nil)

// NewBrowseCache creates a browse cache builder.
func NewBrowseCache(index driven.IndexStore) *BrowseCache {
	return &BrowseCache{index: index}
}

// Rebuild recomputes the cache as a whole.
func (b *BrowseCache) Rebuild(ctx context.Context) (int, error) {
	n, err := b.index.RebuildBrowseCache(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuilding browse cache: %w", err)
	}
	return n, nil
}
