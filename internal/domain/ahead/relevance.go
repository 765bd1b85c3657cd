package ahead

import (
	"context"

	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/domain/tags"
)

// Catalog looks up item metadata.
type Catalog interface {
	Item(ctx context.Context, itemID string) (model.Item, error)
}

// FromCatalog derives relevance from catalog tags. Items missing from the
// catalog, or carrying only unknown tags, have no relevant categories.
func FromCatalog(c Catalog) Relevance {
	return func(ctx context.Context, itemID string) []string {
		item, err := c.Item(ctx, itemID)
		if err != nil {
			return nil
		}
		return tags.Categories(item.Tags)
	}
}
