// Package engine provides the Engine façade: it routes an insert
// through RecordCatalog -> HeapFileStore (via BufferPool) -> BPlusTree,
// and a search through BPlusTree -> BufferPool -> HeapFileStore.
package engine

import (
	"fmt"

	"github.com/talDoFlemis/wineengine/internal/bptree"
	"github.com/talDoFlemis/wineengine/internal/bufferpool"
	"github.com/talDoFlemis/wineengine/internal/catalog"
	"github.com/talDoFlemis/wineengine/internal/heapstore"
	"github.com/talDoFlemis/wineengine/internal/wine"
)

// Engine composes the Catalog and the BPlusTree over a shared pair of
// buffer pools.
type Engine struct {
	heap      *heapstore.Store
	index     *bptree.Store
	dataPool  *bufferpool.Pool[heapstore.PageID, *heapstore.Page]
	indexPool *bufferpool.Pool[bptree.NodeID, *bptree.Node]
	catalog   *catalog.Catalog
	tree      *bptree.Tree
}

// New wires the heap store, index store, both buffer pools, the
// catalog and the tree into one Engine.
func New(heap *heapstore.Store, index *bptree.Store, dataFrames, indexFrames, degree int) *Engine {
	dataPool := bufferpool.New[heapstore.PageID, *heapstore.Page](dataFrames, heap, func(p *heapstore.Page) heapstore.PageID { return p.ID })
	indexPool := bufferpool.New[bptree.NodeID, *bptree.Node](indexFrames, index, func(n *bptree.Node) bptree.NodeID { return n.ID })
	return &Engine{
		heap:      heap,
		index:     index,
		dataPool:  dataPool,
		indexPool: indexPool,
		catalog:   catalog.New(heap, dataPool),
		tree:      bptree.NewTree(degree, index, indexPool),
	}
}

// Insert performs the INC:k insert path for a single wine record. If
// the index insert fails after the heap insert already succeeded, the
// heap record is not rolled back — this is a known, deliberately
// preserved limitation.
func (e *Engine) Insert(rec wine.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("engine: invalid record: %w", err)
	}
	loc, err := e.catalog.InsertRecord(rec)
	if err != nil {
		return fmt.Errorf("engine: insert into heap: %w", err)
	}
	if err := e.tree.Insert(rec.HarvestYear, loc); err != nil {
		return fmt.Errorf("%w: index insert after heap write at %s: %v", bptree.ErrTree, loc, err)
	}
	return nil
}

// Search performs the BUS=:k search path.
func (e *Engine) Search(harvestYear int32) ([]wine.Record, error) {
	locs, err := e.tree.Search(harvestYear)
	if err != nil {
		return nil, fmt.Errorf("engine: index search: %w", err)
	}
	out := make([]wine.Record, 0, len(locs))
	for _, loc := range locs {
		page, err := e.dataPool.Load(loc.PageID)
		if err != nil {
			return nil, fmt.Errorf("engine: load page for locator %s: %w", loc, err)
		}
		if int(loc.Slot) >= len(page.Records) {
			return nil, fmt.Errorf("engine: locator %s has no record on its page", loc)
		}
		out = append(out, page.Records[loc.Slot])
	}
	return out, nil
}

// Height returns the index's current height.
func (e *Engine) Height() int { return e.tree.Height() }

// SetDegree overrides the B+ tree's split threshold after construction.
// Engine is normally built before a command file's header is known, so
// the caller supplies a fallback degree to New and then calls SetDegree
// once the header's m has been parsed, before any inserts run.
func (e *Engine) SetDegree(degree int) { e.tree.SetDegree(degree) }

// Flush drains both buffer pools, data pool first and then index
// pool, and then fsyncs the heap file. The index file is rewritten
// with a plain file write on every node save and is not fsynced here.
func (e *Engine) Flush() error {
	if err := e.dataPool.FlushAll(); err != nil {
		return fmt.Errorf("engine: flush data pool: %w", err)
	}
	if err := e.indexPool.FlushAll(); err != nil {
		return fmt.Errorf("engine: flush index pool: %w", err)
	}
	if err := e.heap.Flush(); err != nil {
		return fmt.Errorf("engine: fsync heap file: %w", err)
	}
	return nil
}
