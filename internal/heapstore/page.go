package heapstore

import (
	"encoding/binary"
	"fmt"

	"github.com/talDoFlemis/wineengine/internal/wine"
)

// PageID identifies a page within the heap file. 0 is reserved; valid
// pages are numbered 1..N contiguously.
type PageID uint32

// Slot is the 0-based ordinal of a record within its page.
type Slot uint32

// Locator uniquely identifies a record's physical position.
type Locator struct {
	PageID PageID
	Slot   Slot
}

func (l Locator) String() string {
	return fmt.Sprintf("(%d,%d)", l.PageID, l.Slot)
}

// fillByte pads the unused tail of a page to its fixed capacity.
const fillByte = 0x00

// Page is a fixed-byte-capacity unit of heap storage: an ordered
// sequence of wine.Record plus trailing padding. Dirty is in-memory
// only, never serialized.
type Page struct {
	ID      PageID
	Records []wine.Record
	Dirty   bool
}

// encodePage serializes p into exactly size bytes, or returns
// ErrPageTooLarge if the record list does not fit.
func encodePage(p *Page, size int) ([]byte, error) {
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Records)))
	for _, r := range p.Records {
		rec, err := encodeRecord(r)
		if err != nil {
			return nil, err
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec)))
		buf = append(buf, rec...)
	}
	if len(buf) > size {
		return nil, fmt.Errorf("%w: page %d needs %d bytes, have %d", ErrPageTooLarge, p.ID, len(buf), size)
	}
	out := make([]byte, size)
	copy(out, buf)
	for i := len(buf); i < size; i++ {
		out[i] = fillByte
	}
	return out, nil
}

// decodePage is the inverse of encodePage; it is total over any buffer
// encodePage produced, and reports ErrPageCorrupt for anything else.
func decodePage(id PageID, buf []byte) (*Page, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: page %d truncated header", ErrPageCorrupt, id)
	}
	off := 0
	count := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	records := make([]wine.Record, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return nil, fmt.Errorf("%w: page %d record %d length truncated", ErrPageCorrupt, id, i)
		}
		recLen := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		if off+recLen > len(buf) {
			return nil, fmt.Errorf("%w: page %d record %d body truncated", ErrPageCorrupt, id, i)
		}
		rec, err := decodeRecord(buf[off : off+recLen])
		if err != nil {
			return nil, fmt.Errorf("%w: page %d record %d: %v", ErrPageCorrupt, id, i, err)
		}
		records = append(records, rec)
		off += recLen
	}
	return &Page{ID: id, Records: records}, nil
}

func encodeRecord(r wine.Record) ([]byte, error) {
	label := []byte(r.Label)
	if len(label) > 1<<16-1 {
		return nil, fmt.Errorf("heapstore: label too long (%d bytes)", len(label))
	}
	buf := make([]byte, 0, 4+4+1+2+len(label))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.WineID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.HarvestYear))
	buf = append(buf, byte(r.VarType))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(label)))
	buf = append(buf, label...)
	return buf, nil
}

func decodeRecord(buf []byte) (wine.Record, error) {
	if len(buf) < 4+4+1+2 {
		return wine.Record{}, fmt.Errorf("record header truncated")
	}
	off := 0
	wineID := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	year := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	varType := wine.Type(buf[off])
	off++
	labelLen := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if off+labelLen != len(buf) {
		return wine.Record{}, fmt.Errorf("record label length mismatch")
	}
	return wine.Record{
		WineID:      wineID,
		Label:       string(buf[off : off+labelLen]),
		HarvestYear: year,
		VarType:     varType,
	}, nil
}
