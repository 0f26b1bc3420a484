// Package header implements the fixed-size leading region of a backing
// file: the persisted file size, free-list head, tree root offset and
// degree/key/value layout, read once at open and rewritten once at close.
// Grounded on original_source/CachedBPtree.cpp's createTree/CachedBPTree
// ctor/dtor, which read and write the same four fields at offset 0 on open
// and close.
package header

import (
	"encoding/binary"
	"fmt"

	"btreedb/pkg/dberr"
	"btreedb/pkg/node"
)

// magic identifies a file as belonging to this format and catches someone
// pointing the tool at an unrelated file.
const magic = uint32(0xB9_7A_0001)

// Size is the fixed byte length of the header region; blocks begin at this
// offset.
const Size = 4 + 2 + 2 + 2 + 8 + 8 + 8 + 8

// Header is the persisted file-level metadata original_source/CachedBPtree.h
// calls file_size/freelist_head/root/sequential_head, plus the Config the
// file was created with so a reopen can validate degree/key/value width
// instead of silently misinterpreting blocks.
type Header struct {
	Config         node.Config
	FileSize       uint64 // total file length in bytes, header included
	FreelistHead   uint64 // node.None if the free-list is empty
	Root           uint64 // node.None if the tree is empty
	SequentialHead uint64 // leftmost leaf offset, node.None if the tree is empty
}

// New returns the header for a freshly created, empty file.
func New(cfg node.Config) Header {
	return Header{
		Config:         cfg,
		FileSize:       Size,
		FreelistHead:   node.None,
		Root:           node.None,
		SequentialHead: node.None,
	}
}

// Encode serializes h into a Size-byte buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Config.Degree)
	binary.LittleEndian.PutUint16(buf[6:8], h.Config.KeySize)
	binary.LittleEndian.PutUint16(buf[8:10], h.Config.ValueSize)
	binary.LittleEndian.PutUint64(buf[10:18], h.FileSize)
	binary.LittleEndian.PutUint64(buf[18:26], h.FreelistHead)
	binary.LittleEndian.PutUint64(buf[26:34], h.Root)
	binary.LittleEndian.PutUint64(buf[34:42], h.SequentialHead)
	return buf
}

// Decode parses a Size-byte buffer into a Header, rejecting anything that
// isn't a file this package wrote.
func Decode(buf []byte) (Header, error) {
	if len(buf) != Size {
		return Header{}, fmt.Errorf("header: buffer is %d bytes, want %d: %w", len(buf), Size, dberr.ErrFormat)
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != magic {
		return Header{}, fmt.Errorf("header: bad magic %#x: %w", got, dberr.ErrFormat)
	}

	var h Header
	h.Config.Degree = binary.LittleEndian.Uint16(buf[4:6])
	h.Config.KeySize = binary.LittleEndian.Uint16(buf[6:8])
	h.Config.ValueSize = binary.LittleEndian.Uint16(buf[8:10])
	h.FileSize = binary.LittleEndian.Uint64(buf[10:18])
	h.FreelistHead = binary.LittleEndian.Uint64(buf[18:26])
	h.Root = binary.LittleEndian.Uint64(buf[26:34])
	h.SequentialHead = binary.LittleEndian.Uint64(buf[34:42])
	return h, nil
}

// blockFile is the subset of storage.BlockFile header.go needs; spelled out
// as an interface so this package doesn't import storage (storage has no
// need to know about header, and it keeps the dependency graph acyclic).
type blockFile interface {
	ReadAt(buf []byte, offset int64) error
	WriteAt(buf []byte, offset int64) error
}

// Read loads the header from the start of f.
func Read(f blockFile) (Header, error) {
	buf := make([]byte, Size)
	if err := f.ReadAt(buf, 0); err != nil {
		return Header{}, err
	}
	return Decode(buf)
}

// Write rewrites the header at the start of f.
func Write(f blockFile, h Header) error {
	return f.WriteAt(h.Encode(), 0)
}

// CheckConfig reports a format error if the file's persisted Config doesn't
// match the Config the caller is opening it with — reopening a tree with a
// different degree or key/value width would otherwise silently misread
// every block.
func (h Header) CheckConfig(want node.Config) error {
	if h.Config != want {
		return fmt.Errorf("header: file config %+v does not match %+v: %w", h.Config, want, dberr.ErrFormat)
	}
	return nil
}
