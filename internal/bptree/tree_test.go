package bptree

import (
	"testing"

	"github.com/talDoFlemis/wineengine/internal/bufferpool"
	"github.com/talDoFlemis/wineengine/internal/heapstore"
)

func newTestTree(t *testing.T, degree, frames int) *Tree {
	t.Helper()
	store, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	pool := bufferpool.New[NodeID, *Node](frames, store, func(n *Node) NodeID { return n.ID })
	return NewTree(degree, store, pool)
}

func TestTree_EmptySearch(t *testing.T) {
	tree := newTestTree(t, 3, 1)
	got, err := tree.Search(2010)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results on an empty tree, got %v", got)
	}
	if tree.Height() != 0 {
		t.Fatalf("Height() = %d, want 0", tree.Height())
	}
}

func TestTree_SingleInsertAndSearch(t *testing.T) {
	tree := newTestTree(t, 3, 1)
	loc := heapstore.Locator{PageID: 1, Slot: 0}
	if err := tree.Insert(2018, loc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := tree.Search(2018)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0] != loc {
		t.Fatalf("Search(2018) = %v, want [%v]", got, loc)
	}
	if _, err := tree.Search(1999); err != nil {
		t.Fatalf("Search(1999): %v", err)
	}
}

// TestTree_DuplicateKeysFullRecall reproduces the S3 scenario: five
// inserts of the same key under a small degree force repeated leaf
// splits, so a run of identical keys ends up straddling more than one
// split boundary. Search must still recover every locator.
func TestTree_DuplicateKeysFullRecall(t *testing.T) {
	tree := newTestTree(t, 3, 1)
	want := make(map[heapstore.Locator]bool)
	for i := uint32(0); i < 5; i++ {
		loc := heapstore.Locator{PageID: 1, Slot: heapstore.Slot(i)}
		if err := tree.Insert(2018, loc); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
		want[loc] = true
	}

	got, err := tree.Search(2018)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Search(2018) returned %d locators, want 5 (got %v)", len(got), got)
	}
	for _, loc := range got {
		if !want[loc] {
			t.Errorf("unexpected locator %v in result", loc)
		}
		delete(want, loc)
	}
	if len(want) != 0 {
		t.Errorf("missing locators: %v", want)
	}
	if tree.Height() < 1 {
		t.Errorf("Height() = %d, want >= 1 after forcing splits", tree.Height())
	}
}

func TestTree_DistinctKeysOrderedRecall(t *testing.T) {
	tree := newTestTree(t, 3, 1)
	years := []int32{2001, 2015, 2003, 2020, 1999, 2010, 2005, 2018, 2012, 1995,
		2022, 2008, 2017, 2002, 1998, 2021, 2011, 2006, 2019, 2009}
	for i, y := range years {
		loc := heapstore.Locator{PageID: 1, Slot: heapstore.Slot(i)}
		if err := tree.Insert(y, loc); err != nil {
			t.Fatalf("Insert(%d): %v", y, err)
		}
	}
	if tree.Height() < 2 {
		t.Fatalf("Height() = %d, want >= 2 after 20 inserts at degree 3", tree.Height())
	}

	for i, y := range years {
		got, err := tree.Search(y)
		if err != nil {
			t.Fatalf("Search(%d): %v", y, err)
		}
		if len(got) != 1 {
			t.Fatalf("Search(%d) returned %d results, want 1", y, len(got))
		}
		if got[0].Slot != heapstore.Slot(i) {
			t.Fatalf("Search(%d) = %v, want slot %d", y, got, i)
		}
	}

	if got, _ := tree.Search(1900); len(got) != 0 {
		t.Fatalf("Search for an absent key returned %v, want none", got)
	}
}

func TestTree_InsertMixedDuplicatesAndDistinct(t *testing.T) {
	tree := newTestTree(t, 4, 2)
	type want struct {
		key   int32
		count int
	}
	plan := []want{{2018, 3}, {2019, 1}, {2018, 2}, {2020, 1}}
	total := 0
	for _, p := range plan {
		for i := 0; i < p.count; i++ {
			loc := heapstore.Locator{PageID: 1, Slot: heapstore.Slot(total)}
			if err := tree.Insert(p.key, loc); err != nil {
				t.Fatalf("Insert(%d): %v", p.key, err)
			}
			total++
		}
	}

	got, err := tree.Search(2018)
	if err != nil {
		t.Fatalf("Search(2018): %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Search(2018) returned %d results, want 5", len(got))
	}
	if got, _ := tree.Search(2019); len(got) != 1 {
		t.Fatalf("Search(2019) returned %d results, want 1", len(got))
	}
	if got, _ := tree.Search(2020); len(got) != 1 {
		t.Fatalf("Search(2020) returned %d results, want 1", len(got))
	}
}
