package bptree

import "errors"

// Sentinel errors for the index file store and the tree built on top
// of it.
var (
	ErrIndexInit    = errors.New("bptree: index initialization failed")
	ErrNodeNotFound = errors.New("bptree: node not found")
	ErrIndexIO      = errors.New("bptree: index i/o failed")
	ErrTree         = errors.New("bptree: operation failed")
)
