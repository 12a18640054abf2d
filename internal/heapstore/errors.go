package heapstore

import "errors"

// Sentinel errors for the heap file store. Callers should use
// errors.Is against these.
var (
	ErrStoreInit      = errors.New("heapstore: initialization failed")
	ErrPageOutOfRange = errors.New("heapstore: page id out of range")
	ErrPageCorrupt    = errors.New("heapstore: page decode failed")
	ErrPageTooLarge   = errors.New("heapstore: record does not fit in a page")
	ErrStoreIO        = errors.New("heapstore: disk i/o failed")
	ErrHeapFull       = errors.New("heapstore: heap file has no room for another page")
)
