package node

import "sort"

// LowerBound returns the index of the first key >= key (bytes.Compare order).
func LowerBound(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool { return compare(keys[i], key) >= 0 })
}

// UpperBound returns the index of the first key > key.
func UpperBound(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool { return compare(keys[i], key) > 0 })
}

// InsertLeaf inserts (key, value) into a leaf's ordered arrays at
// upper_bound(K, key), per spec.md §4.5. The caller is responsible for
// rejecting duplicate keys before calling this (see btree.Tree.Insert);
// InsertLeaf itself does not check.
func InsertLeaf(n *Node, key, value []byte) {
	i := UpperBound(n.Keys, key)
	n.Keys = insertBytes(n.Keys, i, key)
	n.Values = insertBytes(n.Values, i, value)
}

// InsertSeparator inserts a promoted (key, childOffset) pair into an
// internal node at upper_bound(K, key); childOffset becomes child[i+1].
func InsertSeparator(n *Node, key []byte, childOffset uint64) {
	i := UpperBound(n.Keys, key)
	n.Keys = insertBytes(n.Keys, i, key)
	n.Children = insertUint64(n.Children, i+1, childOffset)
}

// SplitLeaf moves the rightmost LeafMin entries of an over-full leaf n into
// a freshly allocated leaf at newOffset, stitches the leaf list, and
// returns the new leaf plus the separator key promoted to the parent
// (new.K[0]). The caller must thread new into the leaf list's neighbor
// (updating the old n.Next's Prev) via the buffer pool.
func SplitLeaf(n *Node, cfg Config, newOffset uint64) (*Node, []byte) {
	total := n.Size()
	newSize := cfg.LeafMin()
	leftSize := total - newSize

	right := NewLeaf(newOffset)
	right.Keys = append([][]byte(nil), n.Keys[leftSize:]...)
	right.Values = append([][]byte(nil), n.Values[leftSize:]...)
	right.Prev = n.Offset
	right.Next = n.Next

	n.Keys = n.Keys[:leftSize:leftSize]
	n.Values = n.Values[:leftSize:leftSize]
	n.Next = right.Offset

	return right, right.Keys[0]
}

// SplitInternal splits an over-full internal node n (size == D after the
// overflowing insert) into n (left, size = D-InternalMin-1) and a new node
// at newOffset (right, size = InternalMin). The key between the two groups
// is promoted to the parent and stored in neither resulting node, per
// spec.md §4.5.
func SplitInternal(n *Node, cfg Config, newOffset uint64) (*Node, []byte) {
	newSize := cfg.InternalMin()
	leftSize := n.Size() - newSize - 1

	sep := n.Keys[leftSize]

	right := NewInternal(newOffset)
	right.Keys = append([][]byte(nil), n.Keys[leftSize+1:]...)
	right.Children = append([]uint64(nil), n.Children[leftSize+1:]...)

	n.Keys = n.Keys[:leftSize:leftSize]
	n.Children = n.Children[:leftSize+1 : leftSize+1]

	return right, sep
}

// RemoveFromLeaf deletes key from a leaf's arrays, reporting whether it was
// present.
func RemoveFromLeaf(n *Node, key []byte) bool {
	i := LowerBound(n.Keys, key)
	if i >= n.Size() || compare(n.Keys[i], key) != 0 {
		return false
	}
	n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
	n.Values = append(n.Values[:i], n.Values[i+1:]...)
	return true
}

// RemoveChild erases the separator key equal to key and the child entry
// equal to childOffset from an internal node. The promoted key passed up
// during delete may sit at either of the two slots adjacent to childOffset
// (spec.md §4.5's edge case), so the child index is located by matching
// childOffset rather than assuming it follows the key.
func RemoveChild(n *Node, key []byte, childOffset uint64) {
	keyIdx := LowerBound(n.Keys, key)
	childIdx := keyIdx
	if childIdx >= len(n.Children) || n.Children[childIdx] != childOffset {
		childIdx++
	}
	n.Keys = append(n.Keys[:keyIdx], n.Keys[keyIdx+1:]...)
	n.Children = append(n.Children[:childIdx], n.Children[childIdx+1:]...)
}

// BorrowLeafFromLeft moves the left sibling's rightmost entry onto the
// front of node, and returns the new separator key the parent must store
// between left and node (node's new first key).
func BorrowLeafFromLeft(n, left *Node) []byte {
	lastIdx := left.Size() - 1
	n.Keys = insertBytes(n.Keys, 0, left.Keys[lastIdx])
	n.Values = insertBytes(n.Values, 0, left.Values[lastIdx])
	left.Keys = left.Keys[:lastIdx:lastIdx]
	left.Values = left.Values[:lastIdx:lastIdx]
	return n.Keys[0]
}

// BorrowLeafFromRight moves the right sibling's leftmost entry onto the end
// of node, and returns the new separator key (right's new first key).
func BorrowLeafFromRight(n, right *Node) []byte {
	n.Keys = append(n.Keys, right.Keys[0])
	n.Values = append(n.Values, right.Values[0])
	right.Keys = append(right.Keys[:0:0], right.Keys[1:]...)
	right.Values = append(right.Values[:0:0], right.Values[1:]...)
	return right.Keys[0]
}

// BorrowInternalFromLeft rotates the left sibling's rightmost child through
// the parent separator parentSep into node, classic B-tree internal
// rotation, and returns the key the parent must install as the new
// separator (left's old rightmost key).
func BorrowInternalFromLeft(n, left *Node, parentSep []byte) []byte {
	lastKeyIdx := left.Size() - 1
	lastChildIdx := len(left.Children) - 1

	n.Keys = insertBytes(n.Keys, 0, parentSep)
	n.Children = insertUint64(n.Children, 0, left.Children[lastChildIdx])

	newSep := left.Keys[lastKeyIdx]
	left.Keys = left.Keys[:lastKeyIdx:lastKeyIdx]
	left.Children = left.Children[:lastChildIdx:lastChildIdx]
	return newSep
}

// BorrowInternalFromRight is the mirror of BorrowInternalFromLeft.
func BorrowInternalFromRight(n, right *Node, parentSep []byte) []byte {
	n.Keys = append(n.Keys, parentSep)
	n.Children = append(n.Children, right.Children[0])

	newSep := right.Keys[0]
	right.Keys = append(right.Keys[:0:0], right.Keys[1:]...)
	right.Children = append(right.Children[:0:0], right.Children[1:]...)
	return newSep
}

// Merging always drops the node that underflowed (dying) into whichever
// sibling absorbs it (survivor), which keeps the survivor's own offset —
// original_source/bptree.cpp's merge_values/merge_keys always delete
// "tobe" (the node passed as the underflowed one) and keep "target" (the
// sibling), regardless of which side of target tobe sits on. Append is
// used when dying is the survivor's right neighbor (the ordinary left-
// sibling-first case); Prepend is used when dying is the survivor's left
// neighbor (only reached when dying has no left sibling at all).

// MergeLeavesAppend fuses dying (the survivor's right neighbor) onto the
// end of survivor and re-stitches the leaf list. The caller must update
// dying.Next's Prev pointer (via the buffer pool) if it isn't node.None,
// deallocate dying, and erase its child entry from the parent.
func MergeLeavesAppend(survivor, dying *Node) {
	survivor.Keys = append(survivor.Keys, dying.Keys...)
	survivor.Values = append(survivor.Values, dying.Values...)
	survivor.Next = dying.Next
}

// MergeLeavesPrepend fuses dying (the survivor's left neighbor) onto the
// front of survivor and re-stitches the leaf list. The caller must update
// dying.Prev's Next pointer if it isn't node.None.
func MergeLeavesPrepend(survivor, dying *Node) {
	survivor.Keys = append(append([][]byte(nil), dying.Keys...), survivor.Keys...)
	survivor.Values = append(append([][]byte(nil), dying.Values...), survivor.Values...)
	survivor.Prev = dying.Prev
}

// MergeInternalAppend fuses dying (the survivor's right neighbor) onto the
// end of survivor, reinserting the parent separator sep between the two
// groups.
func MergeInternalAppend(survivor, dying *Node, sep []byte) {
	survivor.Keys = append(survivor.Keys, sep)
	survivor.Keys = append(survivor.Keys, dying.Keys...)
	survivor.Children = append(survivor.Children, dying.Children...)
}

// MergeInternalPrepend fuses dying (the survivor's left neighbor) onto the
// front of survivor, reinserting the parent separator sep between the two
// groups.
func MergeInternalPrepend(survivor, dying *Node, sep []byte) {
	keys := append(append([][]byte(nil), dying.Keys...), sep)
	survivor.Keys = append(keys, survivor.Keys...)
	survivor.Children = append(append([]uint64(nil), dying.Children...), survivor.Children...)
}

func insertBytes(s [][]byte, i int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertUint64(s []uint64, i int, v uint64) []uint64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
