// Package catalog adapts the record-level insert protocol to the
// heap store: it decides whether the currently resident data page has
// room for one more record, or a fresh page must be allocated, and
// returns the Locator the record ends up at.
//
// Grounded on the teacher's row-append logic in internal/storage/db.go
// (check current page for space, allocate a fresh one if out of room)
// from the retrieval pack, narrowed to one explicit rule: the engine
// only ever inspects the pool's "current" page or a freshly allocated
// one — it never scans other resident or on-disk pages for free
// space.
package catalog

import (
	"fmt"

	"github.com/talDoFlemis/wineengine/internal/bufferpool"
	"github.com/talDoFlemis/wineengine/internal/heapstore"
	"github.com/talDoFlemis/wineengine/internal/wine"
)

// firstPageID is the canonical "current" page when the pool is empty.
const firstPageID = heapstore.PageID(1)

// Catalog is the RecordCatalog.
type Catalog struct {
	store *heapstore.Store
	pool  *bufferpool.Pool[heapstore.PageID, *heapstore.Page]
}

// New wraps store/pool.
func New(store *heapstore.Store, pool *bufferpool.Pool[heapstore.PageID, *heapstore.Page]) *Catalog {
	return &Catalog{store: store, pool: pool}
}

// InsertRecord appends rec to the current page (or a freshly allocated
// one if it doesn't fit) and returns the Locator it was appended at.
func (c *Catalog) InsertRecord(rec wine.Record) (heapstore.Locator, error) {
	page, err := c.pool.GetCurrent(firstPageID)
	if err != nil {
		return heapstore.Locator{}, fmt.Errorf("catalog: get current page: %w", err)
	}

	if c.store.PageHasSpaceFor(page, rec) {
		page.Records = append(page.Records, rec)
		c.pool.MarkDirty(page.ID)
		return heapstore.Locator{PageID: page.ID, Slot: heapstore.Slot(len(page.Records) - 1)}, nil
	}

	fresh, err := c.store.AllocatePage()
	if err != nil {
		return heapstore.Locator{}, fmt.Errorf("catalog: allocate page: %w", err)
	}
	if err := c.pool.Put(fresh); err != nil {
		return heapstore.Locator{}, fmt.Errorf("catalog: install new page: %w", err)
	}
	fresh.Records = append(fresh.Records, rec)
	c.pool.MarkDirty(fresh.ID)
	return heapstore.Locator{PageID: fresh.ID, Slot: 0}, nil
}
