// Package dberr defines the sentinel errors the rest of the module wraps
// with fmt.Errorf %w, so callers can classify failures with
// errors.Is regardless of which layer raised them.
package dberr

import "errors"

var (
	// ErrIO wraps any failure from the backing file (short read/write,
	// seek failure, flush failure). Once an operation returns an error
	// wrapping ErrIO, the owning db.DB is poisoned (see ErrPoisoned).
	ErrIO = errors.New("dberr: backing file i/o failure")

	// ErrFormat signals the backing file's header or a decoded block is not
	// a valid instance of this package's on-disk format: bad magic, a node
	// with an impossible type tag, or a Config mismatch between the file
	// and the Config the caller opened it with.
	ErrFormat = errors.New("dberr: invalid on-disk format")

	// ErrCapacity signals a configuration value that cannot be satisfied,
	// such as a buffer pool capacity below the tree's structural minimum.
	ErrCapacity = errors.New("dberr: capacity requirement not satisfiable")

	// ErrPoisoned is returned by every DB method after any prior operation
	// on that instance failed with an I/O error. The spec requires the
	// first I/O failure to halt further mutation rather than risk writing
	// a half-updated tree, so the instance is permanently poisoned instead
	// of retried.
	ErrPoisoned = errors.New("dberr: instance poisoned by a prior i/o failure")

	// ErrDuplicateKey is returned by Insert when the key already exists.
	// The corpus' teacher treats insert as upsert; this module's spec
	// calls for point insert to reject duplicates (see DESIGN.md).
	ErrDuplicateKey = errors.New("dberr: key already exists")

	// ErrKeyNotFound is returned by Search and Remove when the key is
	// absent.
	ErrKeyNotFound = errors.New("dberr: key not found")

	// ErrAlreadyExists is returned by Create when path already names a
	// file on disk. Mirrors original_source/CachedBPtree.cpp's createTree,
	// which fails whenever the target path is already openable.
	ErrAlreadyExists = errors.New("dberr: file already exists")
)
