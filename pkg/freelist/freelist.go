// Package freelist manages block allocation within a backing file: reusing
// deallocated blocks threaded through a singly-linked free-list, and
// growing the file by one block when the free-list is empty. Grounded on
// original_source/CachedBPtree.cpp's initNode/deleteNode.
package freelist

import (
	"btreedb/pkg/cache"
	"btreedb/pkg/node"
	"btreedb/pkg/storage"
)

// Manager tracks the free-list head and hands out block offsets for new
// nodes, reusing freed blocks before extending the file.
type Manager struct {
	pool    *cache.Pool
	storage *storage.BlockFile
	cfg     node.Config
	head    uint64 // node.None when the free-list is empty
}

// New wires a Manager to the pool and backing file it allocates from,
// starting from the free-list head persisted in the file header.
func New(pool *cache.Pool, blockFile *storage.BlockFile, cfg node.Config, head uint64) *Manager {
	return &Manager{pool: pool, storage: blockFile, cfg: cfg, head: head}
}

// Head returns the current free-list head, to be persisted into the file
// header at Close.
func (m *Manager) Head() uint64 { return m.head }

// Allocate reserves a block for a node of the given type, reusing the
// free-list head if one exists or appending a fresh block otherwise
// (original_source/CachedBPtree.cpp's initNode). The returned node is
// resident in the pool, ready for the caller to populate and later persist
// through an ordinary pool eviction or FlushAll.
func (m *Manager) Allocate(t node.Type) (*node.Node, error) {
	if m.head == node.None {
		offset, err := m.extend()
		if err != nil {
			return nil, err
		}
		m.head = offset
	}

	offset := m.head
	freed, err := m.pool.Get(offset)
	if err != nil {
		return nil, err
	}
	m.head = freed.Next

	var fresh *node.Node
	switch t {
	case node.Leaf:
		fresh = node.NewLeaf(offset)
	case node.Internal:
		fresh = node.NewInternal(offset)
	default:
		fresh = &node.Node{Type: t, Offset: offset, Next: node.None, Prev: node.None}
	}
	if err := m.pool.Put(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// extend appends a fresh FREE block to the backing file and returns its
// offset.
func (m *Manager) extend() (uint64, error) {
	zero := make([]byte, m.cfg.BlockSize())
	offset, err := m.storage.Append(zero)
	if err != nil {
		return 0, err
	}

	free := node.NewFree(offset, node.None)
	buf := make([]byte, m.cfg.BlockSize())
	if err := node.Encode(free, m.cfg, buf); err != nil {
		return 0, err
	}
	if err := m.storage.WriteBlock(offset, buf); err != nil {
		return 0, err
	}
	return offset, nil
}

// Deallocate returns n's block to the free-list, threading it onto the
// current head.
//
// original_source/CachedBPtree.cpp's deleteNode computes this same next
// pointer but then evicts the frame with cache.remove() before the write
// that would persist it, discarding the block's FREE marker and leaking it
// out of the list; this reimplementation keeps the block resident (via
// Put, not Remove) so Allocate can actually find it again — see DESIGN.md.
func (m *Manager) Deallocate(n *node.Node) error {
	free := node.NewFree(n.Offset, m.head)
	m.head = n.Offset
	return m.pool.Put(free)
}
