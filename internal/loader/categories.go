package loader

import (
	"context"

	"github.com/cesargomez89/flixetl/internal/store"
)

// categoryCache memoizes category ids for a whole load. Ids created inside the
// current batch stay pending until the batch commits.
type categoryCache struct {
	ids     map[string]int64
	pending map[string]int64
}

func newCategoryCache() *categoryCache {
	return &categoryCache{
		ids:     make(map[string]int64),
		pending: make(map[string]int64),
	}
}

func (c *categoryCache) resolve(ctx context.Context, tx *store.DB, name string) (int64, error) {
	if id, ok := c.ids[name]; ok {
		return id, nil
	}
	if id, ok := c.pending[name]; ok {
		return id, nil
	}
	id, err := tx.InsertCategory(ctx, name)
	if err != nil {
		return 0, err
	}
	c.pending[name] = id
	return id, nil
}

func (c *categoryCache) commit() {
	for name, id := range c.pending {
		c.ids[name] = id
	}
	clear(c.pending)
}

func (c *categoryCache) rollback() {
	clear(c.pending)
}

func (c *categoryCache) size() int {
	return len(c.ids)
}
