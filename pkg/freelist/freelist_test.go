package freelist

import (
	"path/filepath"
	"testing"

	"btreedb/pkg/cache"
	"btreedb/pkg/node"
	"btreedb/pkg/storage"
)

func newTestRig(t *testing.T) (*storage.BlockFile, *cache.Pool, node.Config) {
	t.Helper()
	cfg := node.Config{Degree: 4, KeySize: 4, ValueSize: 8}
	path := filepath.Join(t.TempDir(), "test.blocks")

	f, err := storage.Open(path, cfg.BlockSize())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	pool, err := cache.New(cache.MinCapacityFactor*node.MaxTreeDepth,
		func(offset uint64) (*node.Node, error) {
			buf, err := f.ReadBlock(offset)
			if err != nil {
				return nil, err
			}
			return node.Decode(cfg, buf)
		},
		func(n *node.Node) error {
			buf := make([]byte, cfg.BlockSize())
			if err := node.Encode(n, cfg, buf); err != nil {
				return err
			}
			return f.WriteBlock(n.Offset, buf)
		},
	)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return f, pool, cfg
}

func TestAllocateExtendsFileWhenFreeListEmpty(t *testing.T) {
	f, pool, cfg := newTestRig(t)
	m := New(pool, f, cfg, node.None)

	before := f.Size()
	n, err := m.Allocate(node.Leaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if n.Type != node.Leaf {
		t.Fatalf("got type %v, want Leaf", n.Type)
	}
	if f.Size() != before+int64(cfg.BlockSize()) {
		t.Fatalf("file did not grow by one block: before=%d after=%d", before, f.Size())
	}
	if m.Head() != node.None {
		t.Fatalf("free-list head should still be empty, got %d", m.Head())
	}
}

func TestDeallocateThenAllocateReusesBlock(t *testing.T) {
	f, pool, cfg := newTestRig(t)
	m := New(pool, f, cfg, node.None)

	a, err := m.Allocate(node.Leaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	freedOffset := a.Offset
	sizeAfterFirstAlloc := f.Size()

	if err := m.Deallocate(a); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	if m.Head() != freedOffset {
		t.Fatalf("free-list head = %d, want %d", m.Head(), freedOffset)
	}

	b, err := m.Allocate(node.Internal)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if b.Offset != freedOffset {
		t.Fatalf("reallocated offset = %d, want reused offset %d", b.Offset, freedOffset)
	}
	if f.Size() != sizeAfterFirstAlloc {
		t.Fatalf("file grew on a reused allocation: before=%d after=%d", sizeAfterFirstAlloc, f.Size())
	}
	if m.Head() != node.None {
		t.Fatalf("free-list should be empty again after reuse, got head=%d", m.Head())
	}
}

func TestDeallocateSurvivesEviction(t *testing.T) {
	f, pool, cfg := newTestRig(t)
	m := New(pool, f, cfg, node.None)

	a, err := m.Allocate(node.Leaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	freedOffset := a.Offset
	if err := m.Deallocate(a); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}

	// Touch enough distinct other blocks to push the freed block out of the
	// pool (evicting it back to disk as a FREE marker), without going
	// through Allocate/Deallocate, which would just hand the same resident
	// frame straight back.
	filler := make([]uint64, cache.MinCapacityFactor*node.MaxTreeDepth+1)
	for i := range filler {
		zero := make([]byte, cfg.BlockSize())
		off, err := f.Append(zero)
		if err != nil {
			t.Fatalf("Append filler %d: %v", i, err)
		}
		filler[i] = off
		free := node.NewFree(off, node.None)
		buf := make([]byte, cfg.BlockSize())
		if err := node.Encode(free, cfg, buf); err != nil {
			t.Fatalf("Encode filler %d: %v", i, err)
		}
		if err := f.WriteBlock(off, buf); err != nil {
			t.Fatalf("WriteBlock filler %d: %v", i, err)
		}
		if _, err := pool.Get(off); err != nil {
			t.Fatalf("Get filler %d: %v", i, err)
		}
	}

	// A fresh manager simulates reopening the file with the persisted
	// free-list head; it must find freedOffset's FREE marker on disk.
	m2 := New(pool, f, cfg, freedOffset)
	reused, err := m2.Allocate(node.Internal)
	if err != nil {
		t.Fatalf("Allocate after eviction: %v", err)
	}
	if reused.Offset != freedOffset {
		t.Fatalf("got offset %d, want %d", reused.Offset, freedOffset)
	}
}
