package heapstore

import (
	"errors"
	"testing"

	"github.com/talDoFlemis/wineengine/internal/wine"
)

func TestInitialize_CreatesFirstPage(t *testing.T) {
	s, err := Initialize(t.TempDir(), 256, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.LastPageID() != 1 {
		t.Fatalf("LastPageID() = %d, want 1", s.LastPageID())
	}
	if !s.PageExists(1) {
		t.Fatal("page 1 should exist after Initialize")
	}
	if s.PageExists(0) {
		t.Fatal("page 0 must never exist")
	}
	if s.PageExists(2) {
		t.Fatal("page 2 should not exist yet")
	}
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	s, err := Initialize(t.TempDir(), 256, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	page, err := s.ReadPage(1)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	page.Records = append(page.Records, wine.Record{WineID: 1, Label: "Reserva", HarvestYear: 2018, VarType: wine.TypeRed})
	if err := s.WritePage(page); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := s.ReadPage(1)
	if err != nil {
		t.Fatalf("ReadPage after write: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].WineID != 1 {
		t.Fatalf("unexpected page contents after round trip: %+v", got.Records)
	}
}

func TestStore_ReadPageOutOfRange(t *testing.T) {
	s, err := Initialize(t.TempDir(), 256, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := s.ReadPage(99); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

func TestStore_AllocatePage_HeapFull(t *testing.T) {
	pageSize := 128
	// Room for two page-sized slots but only one page (id 1): offsets
	// [0,128) reserved unused, [128,256) page 1, and nothing left for
	// page 2.
	s, err := Initialize(t.TempDir(), pageSize, int64(2*pageSize))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := s.AllocatePage(); !errors.Is(err, ErrHeapFull) {
		t.Fatalf("expected ErrHeapFull allocating a second page, got %v", err)
	}
}

func TestStore_AllocatePage_GrowsUntilFull(t *testing.T) {
	pageSize := 64
	s, err := Initialize(t.TempDir(), pageSize, int64(4*pageSize))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// Page 1 was allocated by Initialize; pages 2 and 3 still fit.
	for want := PageID(2); want <= 3; want++ {
		p, err := s.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage for id %d: %v", want, err)
		}
		if p.ID != want {
			t.Fatalf("AllocatePage returned id %d, want %d", p.ID, want)
		}
	}
	if _, err := s.AllocatePage(); !errors.Is(err, ErrHeapFull) {
		t.Fatalf("expected ErrHeapFull after exhausting capacity, got %v", err)
	}
}

func TestStore_PageHasSpaceFor(t *testing.T) {
	s, err := Initialize(t.TempDir(), 64, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	page, err := s.ReadPage(1)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	rec := wine.Record{WineID: 1, Label: "Reserva", HarvestYear: 2018, VarType: wine.TypeRed}
	if !s.PageHasSpaceFor(page, rec) {
		t.Fatal("empty page should have room for one small record")
	}
	huge := wine.Record{WineID: 1, Label: "a very long label well beyond what 64 bytes can hold in total", HarvestYear: 2018, VarType: wine.TypeRed}
	if s.PageHasSpaceFor(page, huge) {
		t.Fatal("page should not have room for an oversized record")
	}
}

func TestStore_ReopenPreservesMetadata(t *testing.T) {
	dir := t.TempDir()
	s1, err := Initialize(dir, 128, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := s1.AllocatePage(); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	wantLast := s1.LastPageID()
	wantID := s1.InstanceID()

	s2, err := Initialize(dir, 128, 4096)
	if err != nil {
		t.Fatalf("reopen Initialize: %v", err)
	}
	if s2.LastPageID() != wantLast {
		t.Errorf("LastPageID after reopen = %d, want %d", s2.LastPageID(), wantLast)
	}
	if s2.InstanceID() != wantID {
		t.Errorf("InstanceID after reopen = %s, want %s", s2.InstanceID(), wantID)
	}
}
