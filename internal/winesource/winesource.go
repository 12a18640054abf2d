// Package winesource is the external collaborator that reads the wine
// CSV catalog, sorts it by harvest year, and answers
// lookup_by_harvest_year(k) -> []wine.Record by binary search over the
// sorted rows held in memory. SaveSortedBinary and LoadSortedBinary
// persist and reload those rows in a fixed-width binary form. It sits
// outside the engine's core and is never
// touched by the BufferPool's memory budget.
//
// The CSV side is grounded on the teacher's
// internal/importer/csv.go (header detection, typed column decode,
// streaming reader) narrowed to the four fixed wine columns. The
// fixed-width sorted form is grounded on the teacher's
// encoding/binary page framing idiom (internal/storage/pager/pager.go).
package winesource

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/talDoFlemis/wineengine/internal/wine"
)

// Catalog is an in-memory, harvest-year-sorted view of the wine
// source data, ready for binary-search lookup.
type Catalog struct {
	sorted []wine.Record
}

// LoadCSV reads the source catalog from path. The expected header is
// `vinho_id,rotulo,ano_colheita,tipo`; rows are
// `<i32>,<string>,<i32>,<{tinto|branco|rose|rosé}>`.
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("winesource: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadCSVReader(bufio.NewReader(f))
}

// LoadCSVReader is LoadCSV with the file already opened, split out for
// tests.
func LoadCSVReader(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("winesource: read header: %w", err)
	}
	wantHeader := []string{"vinho_id", "rotulo", "ano_colheita", "tipo"}
	if len(header) != len(wantHeader) {
		return nil, fmt.Errorf("winesource: expected header %v, got %v", wantHeader, header)
	}
	for i, col := range wantHeader {
		if header[i] != col {
			return nil, fmt.Errorf("winesource: expected header %v, got %v", wantHeader, header)
		}
	}

	var rows []wine.Record
	lineNo := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("winesource: row %d: %w", lineNo+1, err)
		}
		lineNo++
		if len(row) != 4 {
			return nil, fmt.Errorf("winesource: row %d: expected 4 columns, got %d", lineNo, len(row))
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("winesource: row %d: %w", lineNo, err)
		}
		rows = append(rows, rec)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].HarvestYear < rows[j].HarvestYear })
	return &Catalog{sorted: rows}, nil
}

func parseRow(row []string) (wine.Record, error) {
	var id, year int64
	if _, err := fmt.Sscanf(row[0], "%d", &id); err != nil {
		return wine.Record{}, fmt.Errorf("vinho_id %q: %w", row[0], err)
	}
	if _, err := fmt.Sscanf(row[2], "%d", &year); err != nil {
		return wine.Record{}, fmt.Errorf("ano_colheita %q: %w", row[2], err)
	}
	varType, err := wine.ParseType(row[3])
	if err != nil {
		return wine.Record{}, err
	}
	rec := wine.Record{
		WineID:      int32(id),
		Label:       row[1],
		HarvestYear: int32(year),
		VarType:     varType,
	}
	if err := rec.Validate(); err != nil {
		return wine.Record{}, err
	}
	return rec, nil
}

// LookupByHarvestYear returns every record whose harvest year equals
// k, via binary search over the pre-sorted catalog.
func (c *Catalog) LookupByHarvestYear(k int32) []wine.Record {
	lo := sort.Search(len(c.sorted), func(i int) bool { return c.sorted[i].HarvestYear >= k })
	hi := sort.Search(len(c.sorted), func(i int) bool { return c.sorted[i].HarvestYear > k })
	if lo >= hi {
		return nil
	}
	out := make([]wine.Record, hi-lo)
	copy(out, c.sorted[lo:hi])
	return out
}

// Len reports the number of rows in the catalog.
func (c *Catalog) Len() int { return len(c.sorted) }

const binaryRecordSize = 4 + 4 + 1 + 2 + 64 // id, year, type, label len, label cap

// SaveSortedBinary persists the sorted catalog as a fixed-width
// binary pre-pass form, so the lookup table can be reloaded without
// re-parsing CSV or re-sorting. Labels longer than 64 bytes are cut to
// their first 64 bytes.
func (c *Catalog) SaveSortedBinary(path string) error {
	buf := make([]byte, 0, len(c.sorted)*binaryRecordSize)
	for _, r := range c.sorted {
		label := []byte(r.Label)
		if len(label) > 64 {
			label = label[:64]
		}
		rec := make([]byte, binaryRecordSize)
		binary.LittleEndian.PutUint32(rec[0:], uint32(r.WineID))
		binary.LittleEndian.PutUint32(rec[4:], uint32(r.HarvestYear))
		rec[8] = byte(r.VarType)
		binary.LittleEndian.PutUint16(rec[9:], uint16(len(label)))
		copy(rec[11:], label)
		buf = append(buf, rec...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("winesource: write sorted binary: %w", err)
	}
	return nil
}

// LoadSortedBinary is the inverse of SaveSortedBinary for labels of at
// most 64 bytes; longer labels come back truncated.
func LoadSortedBinary(path string) (*Catalog, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("winesource: read sorted binary: %w", err)
	}
	if len(buf)%binaryRecordSize != 0 {
		return nil, fmt.Errorf("winesource: sorted binary file is not record-aligned")
	}
	n := len(buf) / binaryRecordSize
	rows := make([]wine.Record, n)
	for i := 0; i < n; i++ {
		rec := buf[i*binaryRecordSize : (i+1)*binaryRecordSize]
		labelLen := binary.LittleEndian.Uint16(rec[9:])
		rows[i] = wine.Record{
			WineID:      int32(binary.LittleEndian.Uint32(rec[0:])),
			HarvestYear: int32(binary.LittleEndian.Uint32(rec[4:])),
			VarType:     wine.Type(rec[8]),
			Label:       string(rec[11 : 11+labelLen]),
		}
	}
	return &Catalog{sorted: rows}, nil
}
