package node

import "testing"

func leafWith(offset uint64, keys ...uint32) *Node {
	n := NewLeaf(offset)
	for i, k := range keys {
		n.Keys = append(n.Keys, EncodeUint32Key(k))
		n.Values = append(n.Values, EncodeUint64Value(uint64(i)))
	}
	return n
}

func keysOf(n *Node) []uint32 {
	out := make([]uint32, n.Size())
	for i, k := range n.Keys {
		out[i] = DecodeUint32Key(k)
	}
	return out
}

func TestInsertLeafKeepsSortedOrder(t *testing.T) {
	n := leafWith(0, 10, 30, 50)
	InsertLeaf(n, EncodeUint32Key(20), EncodeUint64Value(99))
	got := keysOf(n)
	want := []uint32{10, 20, 30, 50}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSplitLeafDivideOccupancy(t *testing.T) {
	cfg := Config{Degree: 4, KeySize: 4, ValueSize: 8} // LeafMax=4, LeafMin=2
	n := leafWith(0, 1, 2, 3, 4, 5)                     // over-full: D+1 = 5 entries
	n.Next = 999

	right, sep := SplitLeaf(n, cfg, 100)

	if n.Size() != 3 || right.Size() != 2 {
		t.Fatalf("split sizes = %d/%d, want 3/2", n.Size(), right.Size())
	}
	if DecodeUint32Key(sep) != 4 {
		t.Fatalf("separator = %d, want 4", DecodeUint32Key(sep))
	}
	if n.Next != right.Offset || right.Prev != n.Offset || right.Next != 999 {
		t.Fatalf("leaf list not stitched: n.Next=%d right.Prev=%d right.Next=%d", n.Next, right.Prev, right.Next)
	}
}

func TestSplitInternalPromotesMiddleKey(t *testing.T) {
	cfg := Config{Degree: 4, KeySize: 4} // InternalMax=3, InternalMin=1
	n := NewInternal(0)
	for _, k := range []uint32{10, 20, 30, 40} { // over-full: D=4 keys
		n.Keys = append(n.Keys, EncodeUint32Key(k))
	}
	n.Children = []uint64{1, 2, 3, 4, 5}

	right, sep := SplitInternal(n, cfg, 200)

	if DecodeUint32Key(sep) != 30 {
		t.Fatalf("promoted separator = %d, want 30", DecodeUint32Key(sep))
	}
	if n.Size() != 2 || right.Size() != 1 {
		t.Fatalf("split sizes = %d/%d, want 2/1", n.Size(), right.Size())
	}
	if len(n.Children) != 3 || len(right.Children) != 2 {
		t.Fatalf("child counts = %d/%d, want 3/2", len(n.Children), len(right.Children))
	}
	if right.Children[0] != 4 || right.Children[1] != 5 {
		t.Fatalf("right children = %v, want [4 5]", right.Children)
	}
}

func TestRemoveFromLeaf(t *testing.T) {
	n := leafWith(0, 1, 2, 3)
	if !RemoveFromLeaf(n, EncodeUint32Key(2)) {
		t.Fatal("expected key 2 to be removed")
	}
	if got := keysOf(n); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("got %v, want [1 3]", got)
	}
	if RemoveFromLeaf(n, EncodeUint32Key(2)) {
		t.Fatal("removing an absent key should report false")
	}
}

func TestBorrowLeafFromLeft(t *testing.T) {
	left := leafWith(0, 1, 2, 3)
	n := leafWith(1, 10, 11)
	sep := BorrowLeafFromLeft(n, left)

	if got := keysOf(left); len(got) != 2 {
		t.Fatalf("left size = %d, want 2", len(got))
	}
	if got := keysOf(n); len(got) != 3 || got[0] != 3 {
		t.Fatalf("n = %v, want first entry borrowed (3)", got)
	}
	if DecodeUint32Key(sep) != 3 {
		t.Fatalf("separator = %d, want 3", DecodeUint32Key(sep))
	}
}

func TestBorrowLeafFromRight(t *testing.T) {
	n := leafWith(0, 1, 2)
	right := leafWith(1, 10, 11, 12)
	sep := BorrowLeafFromRight(n, right)

	if got := keysOf(n); got[len(got)-1] != 10 {
		t.Fatalf("n last entry = %d, want 10", got[len(got)-1])
	}
	if got := keysOf(right); len(got) != 2 || got[0] != 11 {
		t.Fatalf("right = %v, want [11 12]", got)
	}
	if DecodeUint32Key(sep) != 11 {
		t.Fatalf("separator = %d, want 11", DecodeUint32Key(sep))
	}
}

func TestMergeLeavesAppend(t *testing.T) {
	left := leafWith(0, 1, 2)
	left.Next = 77
	right := leafWith(1, 3, 4)
	right.Next = 999

	MergeLeavesAppend(left, right)

	if got := keysOf(left); len(got) != 4 || got[3] != 4 {
		t.Fatalf("merged = %v, want [1 2 3 4]", got)
	}
	if left.Next != 999 {
		t.Fatalf("left.Next = %d, want 999 (right's old Next)", left.Next)
	}
}

func TestMergeLeavesPrepend(t *testing.T) {
	left := leafWith(0, 1, 2)
	left.Prev = 55
	right := leafWith(1, 3, 4)

	MergeLeavesPrepend(right, left)

	if got := keysOf(right); len(got) != 4 || got[0] != 1 {
		t.Fatalf("merged = %v, want [1 2 3 4]", got)
	}
	if right.Prev != 55 {
		t.Fatalf("right.Prev = %d, want 55 (left's old Prev)", right.Prev)
	}
}

func TestRemoveChildFindsMatchingSlot(t *testing.T) {
	n := NewInternal(0)
	n.Keys = [][]byte{EncodeUint32Key(10), EncodeUint32Key(20)}
	n.Children = []uint64{100, 200, 300}

	RemoveChild(n, EncodeUint32Key(10), 200)

	if n.Size() != 1 || DecodeUint32Key(n.Keys[0]) != 20 {
		t.Fatalf("keys after removal = %v", keysOf(n))
	}
	if len(n.Children) != 2 || n.Children[0] != 100 || n.Children[1] != 300 {
		t.Fatalf("children after removal = %v, want [100 300]", n.Children)
	}
}
