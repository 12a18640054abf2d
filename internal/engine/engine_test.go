package engine

import (
	"testing"

	"github.com/talDoFlemis/wineengine/internal/bptree"
	"github.com/talDoFlemis/wineengine/internal/heapstore"
	"github.com/talDoFlemis/wineengine/internal/wine"
)

func newTestEngine(t *testing.T, degree int) *Engine {
	t.Helper()
	dir := t.TempDir()
	heap, err := heapstore.Initialize(dir, 4096, 1<<20)
	if err != nil {
		t.Fatalf("heapstore.Initialize: %v", err)
	}
	index, err := bptree.Initialize(dir)
	if err != nil {
		t.Fatalf("bptree.Initialize: %v", err)
	}
	return New(heap, index, 1, 1, degree)
}

func rec(id, year int32) wine.Record {
	return wine.Record{WineID: id, Label: "Reserva", HarvestYear: year, VarType: wine.TypeRed}
}

func TestEngine_EmptySearch(t *testing.T) {
	eng := newTestEngine(t, 3)
	got, err := eng.Search(2010)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
	if eng.Height() != 0 {
		t.Fatalf("Height() = %d, want 0", eng.Height())
	}
}

func TestEngine_InsertThenSearch(t *testing.T) {
	eng := newTestEngine(t, 3)
	if err := eng.Insert(rec(1, 2018)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := eng.Search(2018)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].WineID != 1 {
		t.Fatalf("Search(2018) = %+v, want one record with WineID 1", got)
	}
}

func TestEngine_DuplicateYearsFullRecall(t *testing.T) {
	eng := newTestEngine(t, 3)
	for id := int32(1); id <= 5; id++ {
		if err := eng.Insert(rec(id, 2018)); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}
	got, err := eng.Search(2018)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Search(2018) returned %d records, want 5", len(got))
	}
	seen := make(map[int32]bool)
	for _, r := range got {
		seen[r.WineID] = true
	}
	for id := int32(1); id <= 5; id++ {
		if !seen[id] {
			t.Errorf("missing WineID %d in results", id)
		}
	}
}

func TestEngine_InsertRejectsInvalidRecord(t *testing.T) {
	eng := newTestEngine(t, 3)
	if err := eng.Insert(wine.Record{WineID: 1, Label: "", HarvestYear: 2018}); err == nil {
		t.Fatal("expected a validation error for an empty label")
	}
}

func TestEngine_FlushIsIdempotent(t *testing.T) {
	eng := newTestEngine(t, 3)
	if err := eng.Insert(rec(1, 2018)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
}
