// Package heapstore implements the paged heap file described in spec
// §4.1: a fixed-size page file with page allocation and a
// record-level append protocol. It is the disk-facing half of the
// engine; the BufferPool (internal/bufferpool) sits above it and is
// the only component callers should use for steady-state access.
//
// The on-disk shape is grounded on the teacher's page-file protocol
// (internal/storage/pager/pager.go in the retrieval pack): a single
// fixed-stride file plus a small metadata document, opened once for
// the process lifetime.
package heapstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/talDoFlemis/wineengine/internal/wine"
)

const (
	heapFileName     = "heap.ygg"
	heapMetaFileName = "heap_metadata.ygg"
)

// Metadata is the heap file's persisted header.
type Metadata struct {
	InstanceID     uuid.UUID `json:"instance_id"`
	LastPageID     PageID    `json:"last_page_id"`
	PageCount      uint32    `json:"page_count"`
	HeapSizeBytes  int64     `json:"heap_size_bytes"`
	PageSizeBytes  int       `json:"page_size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Store owns the heap file on disk: it allocates pages, reads and
// writes them by id, and reports free space. It holds no page cache —
// that is the BufferPool's job.
type Store struct {
	dir      string
	pageSize int
	file     *os.File
	meta     Metadata
	metaPath string
}

// Initialize opens (or creates) the heap file store rooted at dir. A
// freshly created store gets an empty page 1.
func Initialize(dir string, pageSize int, heapSizeBytes int64) (*Store, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive", ErrStoreInit)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", ErrStoreInit, dir, err)
	}

	s := &Store{
		dir:      dir,
		pageSize: pageSize,
		metaPath: filepath.Join(dir, heapMetaFileName),
	}
	heapPath := filepath.Join(dir, heapFileName)

	if _, err := os.Stat(s.metaPath); os.IsNotExist(err) {
		now := time.Now()
		s.meta = Metadata{
			InstanceID:     uuid.New(),
			LastPageID:     0,
			PageCount:      0,
			HeapSizeBytes:  heapSizeBytes,
			PageSizeBytes:  pageSize,
			CreatedAt:      now,
			LastModifiedAt: now,
		}
		f, err := os.OpenFile(heapPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%w: create heap file: %v", ErrStoreInit, err)
		}
		if err := f.Truncate(heapSizeBytes); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: truncate heap file: %v", ErrStoreInit, err)
		}
		s.file = f
		if err := s.saveMetadata(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreInit, err)
		}
		if _, err := s.AllocatePage(); err != nil {
			return nil, fmt.Errorf("%w: allocate initial page: %v", ErrStoreInit, err)
		}
		return s, nil
	}

	raw, err := os.ReadFile(s.metaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %v", ErrStoreInit, err)
	}
	if err := json.Unmarshal(raw, &s.meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", ErrStoreInit, err)
	}
	s.pageSize = s.meta.PageSizeBytes

	f, err := os.OpenFile(heapPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open heap file: %v", ErrStoreInit, err)
	}
	s.file = f
	return s, nil
}

// PageSize returns the fixed page capacity P.
func (s *Store) PageSize() int { return s.pageSize }

// LastPageID returns the highest allocated page id.
func (s *Store) LastPageID() PageID { return s.meta.LastPageID }

func (s *Store) offsetOf(id PageID) int64 {
	return int64(id) * int64(s.pageSize)
}

// PageExists reports whether id names an allocated page. 0 is never
// an allocated page.
func (s *Store) PageExists(id PageID) bool {
	return id >= 1 && id <= s.meta.LastPageID
}

// ReadPage loads page id from disk.
func (s *Store) ReadPage(id PageID) (*Page, error) {
	if !s.PageExists(id) {
		return nil, fmt.Errorf("%w: page %d (last=%d)", ErrPageOutOfRange, id, s.meta.LastPageID)
	}
	buf := make([]byte, s.pageSize)
	if _, err := s.file.ReadAt(buf, s.offsetOf(id)); err != nil {
		return nil, fmt.Errorf("%w: read page %d: %v", ErrStoreIO, id, err)
	}
	return decodePage(id, buf)
}

// WritePage persists page to its slot on disk.
func (s *Store) WritePage(page *Page) error {
	if !s.PageExists(page.ID) {
		return fmt.Errorf("%w: page %d (last=%d)", ErrPageOutOfRange, page.ID, s.meta.LastPageID)
	}
	buf, err := encodePage(page, s.pageSize)
	if err != nil {
		return err
	}
	if _, err := s.file.WriteAt(buf, s.offsetOf(page.ID)); err != nil {
		return fmt.Errorf("%w: write page %d: %v", ErrStoreIO, page.ID, err)
	}
	s.meta.LastModifiedAt = time.Now()
	if err := s.saveMetadata(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// AllocatePage grows the heap file by one empty page and returns it.
func (s *Store) AllocatePage() (*Page, error) {
	next := s.meta.LastPageID + 1
	if (int64(next)+1)*int64(s.pageSize) > s.meta.HeapSizeBytes {
		return nil, fmt.Errorf("%w: heap_size_bytes=%d exceeded at page %d", ErrHeapFull, s.meta.HeapSizeBytes, next)
	}
	page := &Page{ID: next}
	buf, err := encodePage(page, s.pageSize)
	if err != nil {
		return nil, err
	}
	if _, err := s.file.WriteAt(buf, s.offsetOf(next)); err != nil {
		return nil, fmt.Errorf("%w: allocate page %d: %v", ErrStoreIO, next, err)
	}
	s.meta.LastPageID = next
	s.meta.PageCount++
	s.meta.LastModifiedAt = time.Now()
	if err := s.saveMetadata(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return page, nil
}

// PageHasSpaceFor reports whether appending rec to page would still
// fit within the fixed page capacity.
func (s *Store) PageHasSpaceFor(page *Page, rec wine.Record) bool {
	hypothetical := &Page{ID: page.ID, Records: append(append([]wine.Record{}, page.Records...), rec)}
	_, err := encodePage(hypothetical, s.pageSize)
	return err == nil
}

// Flush forces the heap file to stable storage. The metadata document
// is rewritten on every page write and allocation and is not fsynced
// here.
func (s *Store) Flush() error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: fsync heap file: %v", ErrStoreIO, err)
	}
	return nil
}

func (s *Store) saveMetadata() error {
	raw, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath, raw, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// InstanceID returns the uuid stamped on this heap file at creation,
// used to correlate log lines across the heap and index files.
func (s *Store) InstanceID() uuid.UUID { return s.meta.InstanceID }

// Load, Save, and Exists satisfy bufferpool.Backend[PageID, *Page] so
// a Store can back a bufferpool.Pool directly.
func (s *Store) Load(id PageID) (*Page, error) { return s.ReadPage(id) }
func (s *Store) Save(page *Page) error         { return s.WritePage(page) }
func (s *Store) Exists(id PageID) bool         { return s.PageExists(id) }
