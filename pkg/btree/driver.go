// Package btree drives whole-tree operations — point search, insert,
// delete, range scan — by composing pkg/node's block codec and array
// primitives over nodes fetched through a pkg/cache buffer pool and
// allocated through a pkg/freelist manager. The descent and ascent logic
// is grounded directly on original_source/bptree.cpp's BPTree: a bounded
// path stack stands in for parent pointers, exactly as bptree.h's
// path_stack/in_node_offset_stack do.
package btree

import (
	"bytes"
	"fmt"

	"btreedb/pkg/cache"
	"btreedb/pkg/dberr"
	"btreedb/pkg/freelist"
	"btreedb/pkg/node"
)

// Tree drives B+ tree operations against a pool of cached nodes. It holds
// no file handle of its own: pkg/db owns the backing file, header and
// pool lifecycle, and wires them into a Tree.
type Tree struct {
	cfg   node.Config
	pool  *cache.Pool
	alloc *freelist.Manager

	root    uint64 // node.None if the tree is empty
	seqHead uint64 // leftmost leaf offset, node.None if the tree is empty
}

// New wires a Tree to the pool and allocator it operates through, with the
// root and sequential head most recently persisted in the file header.
func New(cfg node.Config, pool *cache.Pool, alloc *freelist.Manager, root, seqHead uint64) *Tree {
	return &Tree{cfg: cfg, pool: pool, alloc: alloc, root: root, seqHead: seqHead}
}

// Root is the current root block offset, or node.None if the tree is empty.
func (t *Tree) Root() uint64 { return t.root }

// SequentialHead is the leftmost leaf's block offset, or node.None if the
// tree is empty — the entry point for a full forward scan.
func (t *Tree) SequentialHead() uint64 { return t.seqHead }

// pathEntry records one internal node visited while descending: its block
// offset, and the child index taken to reach the next level down. This is
// the Go equivalent of bptree.h's parallel path_stack/in_node_offset_stack
// arrays, bounded the same way (node.MaxTreeDepth, bptree.h's STACK_DEPTH).
type pathEntry struct {
	offset uint64
	index  int
}

type pathStack struct {
	entries [node.MaxTreeDepth]pathEntry
	depth   int
}

func (s *pathStack) push(offset uint64, index int) {
	if s.depth >= len(s.entries) {
		panic("btree: tree depth exceeds MaxTreeDepth")
	}
	s.entries[s.depth] = pathEntry{offset: offset, index: index}
	s.depth++
}

func (s *pathStack) pop() pathEntry {
	s.depth--
	return s.entries[s.depth]
}

func (s *pathStack) empty() bool { return s.depth == 0 }

func (t *Tree) checkKey(key []byte) error {
	if len(key) != int(t.cfg.KeySize) {
		return fmt.Errorf("btree: key is %d bytes, want %d", len(key), t.cfg.KeySize)
	}
	return nil
}

// descend walks from the root to the leaf that would contain key, building
// the path stack of internal nodes visited along the way, mirroring
// basic_search.
func (t *Tree) descend(key []byte) (*node.Node, pathStack, error) {
	var stack pathStack
	offset := t.root
	for {
		n, err := t.pool.Get(offset)
		if err != nil {
			return nil, stack, err
		}
		if n.Type == node.Leaf {
			return n, stack, nil
		}
		idx := node.UpperBound(n.Keys, key)
		stack.push(offset, idx)
		offset = n.Children[idx]
	}
}

// Search returns the value stored for key, or dberr.ErrKeyNotFound.
func (t *Tree) Search(key []byte) ([]byte, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	if t.root == node.None {
		return nil, dberr.ErrKeyNotFound
	}
	leaf, _, err := t.descend(key)
	if err != nil {
		return nil, err
	}
	i := node.LowerBound(leaf.Keys, key)
	if i >= leaf.Size() || !bytes.Equal(leaf.Keys[i], key) {
		return nil, dberr.ErrKeyNotFound
	}
	return leaf.Values[i], nil
}

// Insert adds (key, value). It returns dberr.ErrDuplicateKey if key is
// already present, mirroring spec.md's point-insert contract (the
// teacher's BTree.Insert upserts; this tree does not — see DESIGN.md).
func (t *Tree) Insert(key, value []byte) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if len(value) != int(t.cfg.ValueSize) {
		return fmt.Errorf("btree: value is %d bytes, want %d", len(value), t.cfg.ValueSize)
	}

	if t.root == node.None {
		leaf, err := t.alloc.Allocate(node.Leaf)
		if err != nil {
			return err
		}
		node.InsertLeaf(leaf, key, value)
		t.root = leaf.Offset
		t.seqHead = leaf.Offset
		return nil
	}

	leaf, stack, err := t.descend(key)
	if err != nil {
		return err
	}
	if i := node.LowerBound(leaf.Keys, key); i < leaf.Size() && bytes.Equal(leaf.Keys[i], key) {
		return dberr.ErrDuplicateKey
	}
	node.InsertLeaf(leaf, key, value)
	if leaf.Size() <= t.cfg.LeafMax() {
		return nil
	}

	placeholder, err := t.alloc.Allocate(node.Leaf)
	if err != nil {
		return err
	}
	right, sep := node.SplitLeaf(leaf, t.cfg, placeholder.Offset)
	if err := t.pool.Put(right); err != nil {
		return err
	}
	if right.Next != node.None {
		nextLeaf, err := t.pool.Get(right.Next)
		if err != nil {
			return err
		}
		nextLeaf.Prev = right.Offset
	}

	return t.ascendInsert(&stack, sep, right.Offset)
}

// ascendInsert propagates a promoted (key, childOffset) pair up the path
// stack, splitting internal nodes as they overflow and finally installing
// a new root if the stack empties out, mirroring insert()'s ascent loop
// and insert_key.
func (t *Tree) ascendInsert(stack *pathStack, key []byte, childOffset uint64) error {
	for !stack.empty() {
		entry := stack.pop()
		parent, err := t.pool.Get(entry.offset)
		if err != nil {
			return err
		}
		node.InsertSeparator(parent, key, childOffset)
		if parent.Size() <= t.cfg.InternalMax() {
			return nil
		}

		placeholder, err := t.alloc.Allocate(node.Internal)
		if err != nil {
			return err
		}
		right, sep := node.SplitInternal(parent, t.cfg, placeholder.Offset)
		if err := t.pool.Put(right); err != nil {
			return err
		}
		key = sep
		childOffset = right.Offset
	}

	newRoot, err := t.alloc.Allocate(node.Internal)
	if err != nil {
		return err
	}
	newRoot.Keys = [][]byte{key}
	newRoot.Children = []uint64{t.root, childOffset}
	if err := t.pool.Put(newRoot); err != nil {
		return err
	}
	t.root = newRoot.Offset
	return nil
}

// sibling looks up the child at parent.Children[idx], returning nil if idx
// is out of range — the Go equivalent of getLeft/getRight, which return
// nullptr at the ends of a parent's child array.
func (t *Tree) sibling(parent *node.Node, idx int) (*node.Node, error) {
	if idx < 0 || idx >= len(parent.Children) {
		return nil, nil
	}
	return t.pool.Get(parent.Children[idx])
}

// Remove deletes key, reporting dberr.ErrKeyNotFound if it is absent.
// Underflowing nodes borrow from a sibling if one has room to lend
// (left sibling first), merge with a sibling otherwise (again preferring
// the left sibling, falling back to the right only when there is no left
// sibling at all), and ascend the path stack propagating the resulting
// separator change or child removal — mirroring remove(), borrow_value,
// borrow_key, merge_values and merge_keys.
func (t *Tree) Remove(key []byte) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if t.root == node.None {
		return dberr.ErrKeyNotFound
	}

	leaf, stack, err := t.descend(key)
	if err != nil {
		return err
	}
	if !node.RemoveFromLeaf(leaf, key) {
		return dberr.ErrKeyNotFound
	}
	if leaf.Size() >= t.cfg.LeafMin() {
		return nil
	}

	if stack.empty() {
		// The leaf is the root; spec.md's Non-goals exempt the root from
		// the occupancy floor, so only a fully empty root collapses the
		// tree, matching remove()'s root-leaf-empty case.
		if leaf.Size() == 0 {
			if err := t.alloc.Deallocate(leaf); err != nil {
				return err
			}
			t.root = node.None
			t.seqHead = node.None
		}
		return nil
	}

	entry := stack.pop()
	parent, err := t.pool.Get(entry.offset)
	if err != nil {
		return err
	}

	left, err := t.sibling(parent, entry.index-1)
	if err != nil {
		return err
	}
	right, err := t.sibling(parent, entry.index+1)
	if err != nil {
		return err
	}

	switch {
	case left != nil && left.Size() > t.cfg.LeafMin():
		newSep := node.BorrowLeafFromLeft(leaf, left)
		parent.Keys[entry.index-1] = newSep
		return nil
	case right != nil && right.Size() > t.cfg.LeafMin():
		newSep := node.BorrowLeafFromRight(leaf, right)
		parent.Keys[entry.index] = newSep
		return nil
	case left != nil:
		node.MergeLeavesAppend(left, leaf)
		if err := t.restitchNext(left); err != nil {
			return err
		}
		droppedKey := parent.Keys[entry.index-1]
		if err := t.alloc.Deallocate(leaf); err != nil {
			return err
		}
		return t.ascendRemove(&stack, parent, droppedKey, leaf.Offset)
	default:
		node.MergeLeavesPrepend(right, leaf)
		if err := t.restitchPrev(right); err != nil {
			return err
		}
		droppedKey := parent.Keys[entry.index]
		if err := t.alloc.Deallocate(leaf); err != nil {
			return err
		}
		if t.seqHead == leaf.Offset {
			t.seqHead = right.Offset
		}
		return t.ascendRemove(&stack, parent, droppedKey, leaf.Offset)
	}
}

// restitchNext fixes the Prev pointer of the leaf now following a merged
// node, after a MergeLeavesAppend (survivor absorbed its right neighbor).
func (t *Tree) restitchNext(survivor *node.Node) error {
	if survivor.Next == node.None {
		return nil
	}
	next, err := t.pool.Get(survivor.Next)
	if err != nil {
		return err
	}
	next.Prev = survivor.Offset
	return nil
}

// restitchPrev is restitchNext's mirror after a MergeLeavesPrepend.
func (t *Tree) restitchPrev(survivor *node.Node) error {
	if survivor.Prev == node.None {
		return nil
	}
	prev, err := t.pool.Get(survivor.Prev)
	if err != nil {
		return err
	}
	prev.Next = survivor.Offset
	return nil
}

// ascendRemove erases (key, childOffset) from cur, and if cur now
// underflows, borrows from or merges with a sibling at cur's own level,
// continuing up the path stack. Reaching an empty root collapses the
// tree by one level. Mirrors remove()'s ascent loop.
func (t *Tree) ascendRemove(stack *pathStack, cur *node.Node, key []byte, childOffset uint64) error {
	for {
		node.RemoveChild(cur, key, childOffset)
		if cur.Size() >= t.cfg.InternalMin() {
			return nil
		}

		if stack.empty() {
			if cur.Size() == 0 {
				newRoot := cur.Children[0]
				if err := t.alloc.Deallocate(cur); err != nil {
					return err
				}
				t.root = newRoot
			}
			return nil
		}

		entry := stack.pop()
		parent, err := t.pool.Get(entry.offset)
		if err != nil {
			return err
		}

		left, err := t.sibling(parent, entry.index-1)
		if err != nil {
			return err
		}
		right, err := t.sibling(parent, entry.index+1)
		if err != nil {
			return err
		}

		switch {
		case left != nil && left.Size() > t.cfg.InternalMin():
			parentSep := parent.Keys[entry.index-1]
			newSep := node.BorrowInternalFromLeft(cur, left, parentSep)
			parent.Keys[entry.index-1] = newSep
			return nil
		case right != nil && right.Size() > t.cfg.InternalMin():
			parentSep := parent.Keys[entry.index]
			newSep := node.BorrowInternalFromRight(cur, right, parentSep)
			parent.Keys[entry.index] = newSep
			return nil
		case left != nil:
			sep := parent.Keys[entry.index-1]
			node.MergeInternalAppend(left, cur, sep)
			dropped := cur.Offset
			if err := t.alloc.Deallocate(cur); err != nil {
				return err
			}
			cur, key, childOffset = parent, sep, dropped
		default:
			sep := parent.Keys[entry.index]
			node.MergeInternalPrepend(right, cur, sep)
			dropped := cur.Offset
			if err := t.alloc.Deallocate(cur); err != nil {
				return err
			}
			cur, key, childOffset = parent, sep, dropped
		}
	}
}

// Range returns all (key, value) pairs with low <= key < high, scanning
// the leaf linked list starting from the first leaf that could contain
// low, mirroring range().
func (t *Tree) Range(low, high []byte) ([][2][]byte, error) {
	if t.root == node.None {
		return nil, nil
	}

	var out [][2][]byte
	leaf, _, err := t.descend(low)
	if err != nil {
		return nil, err
	}

	i := node.LowerBound(leaf.Keys, low)
	for {
		for ; i < leaf.Size(); i++ {
			if bytes.Compare(leaf.Keys[i], high) >= 0 {
				return out, nil
			}
			out = append(out, [2][]byte{leaf.Keys[i], leaf.Values[i]})
		}
		if leaf.Next == node.None {
			return out, nil
		}
		leaf, err = t.pool.Get(leaf.Next)
		if err != nil {
			return nil, err
		}
		i = 0
	}
}
