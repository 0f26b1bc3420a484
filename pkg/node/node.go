// Package node implements the on-disk node format for the B+ tree: the
// fixed-size block layout, the codec that serializes a decoded node to and
// from that layout, and the in-node array primitives (insert, split, borrow,
// merge) that the tree driver in pkg/btree composes into whole-tree
// operations.
package node

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Type tags the three node variants a block can hold.
type Type uint8

const (
	// Free marks a block on the free-list; only Offset and Next are meaningful.
	Free Type = iota
	// Leaf holds keys and values in sorted order, plus sibling links.
	Leaf
	// Internal holds separator keys and child offsets.
	Internal
)

func (t Type) String() string {
	switch t {
	case Free:
		return "FREE"
	case Leaf:
		return "LEAF"
	case Internal:
		return "INTERNAL"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// None is the sentinel LocaType value meaning "no such node": an absent
// root, an absent leaf sibling, or the free-list terminator.
const None uint64 = math.MaxUint64

// MaxTreeDepth bounds the path stack the tree driver carries per operation.
// With the smallest practical degree (4), depth 20 still addresses far more
// keys than any real file will ever hold; see original_source/bptree.h's
// STACK_DEPTH, which uses the same constant for the same reason.
const MaxTreeDepth = 20

// Config parameterizes the tree's block layout. It is fixed for the
// lifetime of a backing file: reopening with a different Config than the
// one a file was created with produces nonsense, which is why pkg/db
// persists Degree/KeySize/ValueSize alongside the header.
type Config struct {
	Degree    uint16 // D: max leaf entries, max internal children (max internal keys + 1)
	KeySize   uint16 // fixed width of every key, in bytes
	ValueSize uint16 // fixed width of every value, in bytes
}

// DefaultConfig mirrors original_source/public.h's DEGREE = 10 with 4-byte
// keys and 8-byte values (that source's uint32 KeyType / int64 ValueType).
var DefaultConfig = Config{
	Degree:    10,
	KeySize:   4,
	ValueSize: 8,
}

// LeafMin, LeafMax, InternalMin and InternalMax are the occupancy bounds
// from spec.md §3: floor(D/2) <= leaf size <= D, floor((D-1)/2) <= internal
// size <= D-1 (root nodes are exempt from the lower bound).
func (c Config) LeafMin() int     { return int(c.Degree) / 2 }
func (c Config) LeafMax() int     { return int(c.Degree) }
func (c Config) InternalMin() int { return int(c.Degree-1) / 2 }
func (c Config) InternalMax() int { return int(c.Degree - 1) }

// fixedHeaderSize is {type(1, padded to 8), offset(8), next(8)} written
// unconditionally, matching original_source/bptree.cpp's writeBuffer: type,
// offset and next are always present; everything else is skipped for FREE
// blocks.
const fixedHeaderSize = 8 + 8 + 8

// variableHeaderSize is {prev(8), size(4)}, present for LEAF and INTERNAL
// blocks only.
const variableHeaderSize = 8 + 4

// leafTrailerSize is the key+value array region of a leaf block.
func (c Config) leafTrailerSize() int {
	return int(c.Degree)*int(c.KeySize) + int(c.Degree)*int(c.ValueSize)
}

// internalTrailerSize is the key+child array region of an internal block.
// Children are over-provisioned by one slot (D+1) so insert-then-split can
// write the (D+1)-th child before the node is split back down, mirroring
// original_source/bptree.h's K[DEGREE+1]/sub_nodes[DEGREE+1] over-allocation.
func (c Config) internalTrailerSize() int {
	return int(c.Degree)*int(c.KeySize) + (int(c.Degree)+1)*8
}

// BlockSize is B = max(leaf layout, internal layout), the fixed size of
// every block in the backing file (spec.md §4.1/§6).
func (c Config) BlockSize() int {
	leaf := fixedHeaderSize + variableHeaderSize + c.leafTrailerSize()
	internal := fixedHeaderSize + variableHeaderSize + c.internalTrailerSize()
	if leaf > internal {
		return leaf
	}
	return internal
}

// Node is the decoded, in-memory representation of one block. Unlike the
// teacher's BNode (a raw byte slice with accessor methods), Node is a plain
// struct: the B+ tree's borrow/merge/redistribute logic mutates ordered
// slices directly, which is how original_source/bptree.h keeps Node too —
// decoded in memory, serialized only at the Encode/Decode boundary.
type Node struct {
	Type   Type
	Offset uint64 // the node's own block offset; stable while allocated
	Next   uint64 // LEAF: next leaf in key order, or None. FREE: next free block.
	Prev   uint64 // LEAF: previous leaf in key order, or None. Unused otherwise.
	Keys   [][]byte
	// Values holds one entry per key for LEAF nodes.
	Values [][]byte
	// Children holds Size()+1 entries for INTERNAL nodes.
	Children []uint64
}

// Size is the number of keys currently stored.
func (n *Node) Size() int { return len(n.Keys) }

// NewLeaf returns an empty leaf node at offset with sentinel sibling links.
func NewLeaf(offset uint64) *Node {
	return &Node{Type: Leaf, Offset: offset, Next: None, Prev: None}
}

// NewInternal returns an empty internal node at offset.
func NewInternal(offset uint64) *Node {
	return &Node{Type: Internal, Offset: offset, Next: None, Prev: None}
}

// NewFree returns a FREE node threaded onto the free-list via next.
func NewFree(offset, next uint64) *Node {
	return &Node{Type: Free, Offset: offset, Next: next, Prev: None}
}

// Encode serializes n into buf, which must be exactly cfg.BlockSize() bytes.
// Padding bytes (the unused tail of an under-full node's key/value/child
// arrays) are left untouched by Encode and must be tolerated by Decode —
// tests fill them with random garbage to verify that (spec.md §4.1/§8).
func Encode(n *Node, cfg Config, buf []byte) error {
	if len(buf) != cfg.BlockSize() {
		return fmt.Errorf("node: encode buffer is %d bytes, want %d", len(buf), cfg.BlockSize())
	}

	buf[0] = byte(n.Type)
	binary.LittleEndian.PutUint64(buf[8:16], n.Offset)
	binary.LittleEndian.PutUint64(buf[16:24], n.Next)
	if n.Type == Free {
		return nil
	}

	binary.LittleEndian.PutUint64(buf[24:32], n.Prev)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Size()))

	off := fixedHeaderSize + variableHeaderSize
	keyW, valW := int(cfg.KeySize), int(cfg.ValueSize)
	for i, k := range n.Keys {
		if len(k) != keyW {
			return fmt.Errorf("node: key %d is %d bytes, want %d", i, len(k), keyW)
		}
		copy(buf[off+i*keyW:], k)
	}
	off += int(cfg.Degree) * keyW

	switch n.Type {
	case Leaf:
		for i, v := range n.Values {
			if len(v) != valW {
				return fmt.Errorf("node: value %d is %d bytes, want %d", i, len(v), valW)
			}
			copy(buf[off+i*valW:], v)
		}
	case Internal:
		for i, child := range n.Children {
			binary.LittleEndian.PutUint64(buf[off+i*8:], child)
		}
	}
	return nil
}

// Decode is the inverse of Encode: decode(encode(n)) == n on every
// semantically valid field, regardless of what garbage occupies padding.
func Decode(cfg Config, buf []byte) (*Node, error) {
	if len(buf) != cfg.BlockSize() {
		return nil, fmt.Errorf("node: decode buffer is %d bytes, want %d", len(buf), cfg.BlockSize())
	}

	n := &Node{Type: Type(buf[0])}
	n.Offset = binary.LittleEndian.Uint64(buf[8:16])
	n.Next = binary.LittleEndian.Uint64(buf[16:24])
	switch n.Type {
	case Free, Leaf, Internal:
	default:
		return nil, fmt.Errorf("node: impossible type tag %d at offset %d", buf[0], n.Offset)
	}
	if n.Type == Free {
		return n, nil
	}

	n.Prev = binary.LittleEndian.Uint64(buf[24:32])
	size := int(binary.LittleEndian.Uint32(buf[32:36]))

	off := fixedHeaderSize + variableHeaderSize
	keyW, valW := int(cfg.KeySize), int(cfg.ValueSize)
	n.Keys = make([][]byte, size)
	for i := 0; i < size; i++ {
		k := make([]byte, keyW)
		copy(k, buf[off+i*keyW:off+(i+1)*keyW])
		n.Keys[i] = k
	}
	off += int(cfg.Degree) * keyW

	switch n.Type {
	case Leaf:
		n.Values = make([][]byte, size)
		for i := 0; i < size; i++ {
			v := make([]byte, valW)
			copy(v, buf[off+i*valW:off+(i+1)*valW])
			n.Values[i] = v
		}
	case Internal:
		n.Children = make([]uint64, size+1)
		for i := 0; i < size+1; i++ {
			n.Children[i] = binary.LittleEndian.Uint64(buf[off+i*8:])
		}
	}
	return n, nil
}

// compare orders two fixed-width keys lexicographically. Callers that want
// numeric key order encode integers big-endian (see EncodeUint32Key and
// EncodeUint64Value below), which makes byte order and numeric order coincide.
func compare(a, b []byte) int { return bytes.Compare(a, b) }

// EncodeUint32Key returns a 4-byte big-endian key whose byte order matches
// numeric order, for use as a KeySize: 4 tree's key codec.
func EncodeUint32Key(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// DecodeUint32Key is the inverse of EncodeUint32Key.
func DecodeUint32Key(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// EncodeUint64Value returns an 8-byte big-endian value, for use as a
// ValueSize: 8 tree's value codec (e.g. original_source's int64 ValueType).
func EncodeUint64Value(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DecodeUint64Value is the inverse of EncodeUint64Value.
func DecodeUint64Value(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
