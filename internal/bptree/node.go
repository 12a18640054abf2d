package bptree

import "github.com/talDoFlemis/wineengine/internal/heapstore"

// NodeID identifies a B+ tree node within the index file. Ids are
// assigned monotonically starting at 0 (the initial root leaf).
type NodeID int64

// NoNode is the sentinel for "no next leaf" / "no node".
const NoNode NodeID = -1

// Node is a B+ tree node: either a leaf (holding keys and locators,
// chained via NextLeafID) or an internal node (holding keys and child
// ids). Leaf and Internal are not split into separate Go types
// because they are persisted through the same record shape and the
// tree's split/promote logic reads and writes both uniformly —
// matching ngina-wtfDB's BPlusTreeNode-variant-per-id shape without
// introducing an interface purely for an `if leaf` branch that both
// sides would need anyway.
type Node struct {
	ID   NodeID
	Leaf bool

	// Keys is non-decreasing. For a leaf, |Keys| == |Locators|. For
	// an internal node, |Children| == |Keys| + 1.
	Keys []int32

	// Leaf-only fields.
	Locators   []heapstore.Locator
	NextLeafID NodeID

	// Internal-only field.
	Children []NodeID
}

func newLeaf(id NodeID) *Node {
	return &Node{ID: id, Leaf: true, NextLeafID: NoNode}
}

func newInternal(id NodeID, key int32, left, right NodeID) *Node {
	return &Node{
		ID:       id,
		Leaf:     false,
		Keys:     []int32{key},
		Children: []NodeID{left, right},
	}
}
