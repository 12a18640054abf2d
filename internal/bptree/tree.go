package bptree

import (
	"fmt"

	"github.com/talDoFlemis/wineengine/internal/bufferpool"
	"github.com/talDoFlemis/wineengine/internal/heapstore"
)

// Tree implements search and insert over a persistent B+ tree keyed
// by int32, with duplicate keys permitted and leaves chained for
// ordered traversal. All node I/O goes through pool, so at most one
// node is ever resident at a time when pool has capacity 1.
type Tree struct {
	degree int // m: max keys per node before split
	store  *Store
	pool   *bufferpool.Pool[NodeID, *Node]
}

// NewTree wraps store/pool with the split threshold degree (m >= 2).
func NewTree(degree int, store *Store, pool *bufferpool.Pool[NodeID, *Node]) *Tree {
	t := &Tree{store: store, pool: pool}
	t.SetDegree(degree)
	return t
}

// SetDegree changes the split threshold used by future inserts. It
// does not touch nodes already on disk: a tree resized after
// insertions have already shaped it around the old degree keeps those
// shapes until an insert into them triggers a split. Callers that
// need the degree to come from outside the process (a command file's
// header, for instance) call this once before driving any inserts.
func (t *Tree) SetDegree(degree int) {
	if degree < 2 {
		degree = 2
	}
	t.degree = degree
}

// Height returns the cached tree height; no I/O.
func (t *Tree) Height() int { return t.store.Meta.Height }

// routeChild applies the insert-side descent rule: equal keys descend
// right. It returns the index of the child whose subtree k is
// appended to: the first i with k < Keys[i], or the rightmost child.
func routeChild(n *Node, k int32) int {
	for i, key := range n.Keys {
		if k < key {
			return i
		}
	}
	return len(n.Keys)
}

// routeChildSearch applies the complementary descent rule used only
// for reads: equal keys descend left, landing on the first (leftmost)
// child whose subtree can hold k. A leaf split can leave a run of
// duplicate keys straddling the separator it promotes (splits happen
// at a fixed midpoint, not at a duplicate-run boundary), so routing a
// read to the rightmost matching child the way routeChild
// does would strand earlier duplicates behind it, unreachable by the
// leaf chain's forward-only walk. Landing left of every tied
// separator instead guarantees the chain walk starting from here
// passes through every leaf holding k, in order, even when k's
// separators accumulated identical values on both sides of a split.
func routeChildSearch(n *Node, k int32) int {
	for i, key := range n.Keys {
		if k <= key {
			return i
		}
	}
	return len(n.Keys)
}

// Search returns every locator stored under key k, in ascending
// leaf-chain order. It performs no writes.
func (t *Tree) Search(k int32) ([]heapstore.Locator, error) {
	curID := t.store.Meta.RootID
	for {
		node, err := t.pool.Load(curID)
		if err != nil {
			return nil, fmt.Errorf("%w: descend: %v", ErrTree, err)
		}
		if node.Leaf {
			break
		}
		curID = node.Children[routeChildSearch(node, k)]
	}

	var out []heapstore.Locator
	for curID != NoNode {
		node, err := t.pool.Load(curID)
		if err != nil {
			return nil, fmt.Errorf("%w: leaf scan: %v", ErrTree, err)
		}
		stop := false
		for i, key := range node.Keys {
			if key == k {
				out = append(out, node.Locators[i])
			} else if key > k {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		curID = node.NextLeafID
	}
	return out, nil
}

// Insert adds (k, loc) to the tree, duplicating keys freely. Splits
// propagate up to a new root when necessary.
func (t *Tree) Insert(k int32, loc heapstore.Locator) error {
	type step struct {
		id       NodeID
		childIdx int
	}
	var path []step
	curID := t.store.Meta.RootID
	for {
		node, err := t.pool.Load(curID)
		if err != nil {
			return fmt.Errorf("%w: descend: %v", ErrTree, err)
		}
		if node.Leaf {
			break
		}
		idx := routeChild(node, k)
		path = append(path, step{id: curID, childIdx: idx})
		curID = node.Children[idx]
	}

	promotedKey, newRight, err := t.insertIntoLeaf(curID, k, loc)
	if err != nil {
		return err
	}

	for i := len(path) - 1; i >= 0 && newRight != nil; i-- {
		parent, err := t.pool.Load(path[i].id)
		if err != nil {
			return fmt.Errorf("%w: reload parent: %v", ErrTree, err)
		}
		promotedKey, newRight, err = t.insertChildAt(parent, path[i].childIdx, promotedKey, newRight.ID)
		if err != nil {
			return err
		}
	}
	if newRight == nil {
		return nil
	}

	oldRootID := t.store.Meta.RootID
	newRootID := t.store.AllocateNodeID()
	newRoot := newInternal(newRootID, promotedKey, oldRootID, newRight.ID)
	if err := t.persistNode(newRoot); err != nil {
		return err
	}
	t.store.Meta.RootID = newRootID
	t.store.Meta.Height++
	if err := t.store.SaveMetadata(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIO, err)
	}
	return nil
}

// insertIntoLeaf inserts (k, loc) into the leaf at leafID in sorted
// order and splits it if it now holds degree keys.
func (t *Tree) insertIntoLeaf(leafID NodeID, k int32, loc heapstore.Locator) (int32, *Node, error) {
	leaf, err := t.pool.Load(leafID)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: load leaf: %v", ErrTree, err)
	}
	pos := len(leaf.Keys)
	for i, key := range leaf.Keys {
		if key > k {
			pos = i
			break
		}
	}
	leaf.Keys = insertInt32(leaf.Keys, pos, k)
	leaf.Locators = insertLocator(leaf.Locators, pos, loc)
	if err := t.persistNode(leaf); err != nil {
		return 0, nil, err
	}
	if len(leaf.Keys) < t.degree {
		return 0, nil, nil
	}

	mid := len(leaf.Keys) / 2
	rightID := t.store.AllocateNodeID()
	right := &Node{
		ID:         rightID,
		Leaf:       true,
		Keys:       append([]int32{}, leaf.Keys[mid:]...),
		Locators:   append([]heapstore.Locator{}, leaf.Locators[mid:]...),
		NextLeafID: leaf.NextLeafID,
	}
	leaf.Keys = leaf.Keys[:mid]
	leaf.Locators = leaf.Locators[:mid]
	leaf.NextLeafID = rightID
	if err := t.persistNode(leaf); err != nil {
		return 0, nil, err
	}
	if err := t.persistNode(right); err != nil {
		return 0, nil, err
	}
	return right.Keys[0], right, nil
}

// insertChildAt inserts key at position pos and childID at pos+1 in
// parent, splitting it if it now holds degree keys.
func (t *Tree) insertChildAt(parent *Node, pos int, key int32, childID NodeID) (int32, *Node, error) {
	parent.Keys = insertInt32(parent.Keys, pos, key)
	parent.Children = insertNodeID(parent.Children, pos+1, childID)
	if err := t.persistNode(parent); err != nil {
		return 0, nil, err
	}
	if len(parent.Keys) < t.degree {
		return 0, nil, nil
	}

	mid := len(parent.Keys) / 2
	promoted := parent.Keys[mid]
	rightID := t.store.AllocateNodeID()
	right := &Node{
		ID:       rightID,
		Leaf:     false,
		Keys:     append([]int32{}, parent.Keys[mid+1:]...),
		Children: append([]NodeID{}, parent.Children[mid+1:]...),
	}
	parent.Keys = parent.Keys[:mid]
	parent.Children = parent.Children[:mid+1]
	if err := t.persistNode(parent); err != nil {
		return 0, nil, err
	}
	if err := t.persistNode(right); err != nil {
		return 0, nil, err
	}
	return promoted, right, nil
}

// persistNode writes n through the buffer pool: installed at MRU,
// marked dirty, and flushed immediately so the split/promote
// invariants hold regardless of pool capacity or eviction timing.
func (t *Tree) persistNode(n *Node) error {
	if err := t.pool.Put(n); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIO, err)
	}
	t.pool.MarkDirty(n.ID)
	if err := t.pool.Flush(n.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIO, err)
	}
	return nil
}

func insertInt32(xs []int32, pos int, v int32) []int32 {
	xs = append(xs, 0)
	copy(xs[pos+1:], xs[pos:])
	xs[pos] = v
	return xs
}

func insertLocator(xs []heapstore.Locator, pos int, v heapstore.Locator) []heapstore.Locator {
	xs = append(xs, heapstore.Locator{})
	copy(xs[pos+1:], xs[pos:])
	xs[pos] = v
	return xs
}

func insertNodeID(xs []NodeID, pos int, v NodeID) []NodeID {
	xs = append(xs, 0)
	copy(xs[pos+1:], xs[pos:])
	xs[pos] = v
	return xs
}
