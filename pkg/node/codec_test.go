package node

import (
	"math/rand"
	"testing"
)

func testConfig() Config {
	return Config{Degree: 6, KeySize: 4, ValueSize: 8}
}

func TestEncodeDecodeLeafRoundTrip(t *testing.T) {
	cfg := testConfig()
	n := NewLeaf(128)
	n.Prev = 64
	n.Next = 256
	n.Keys = [][]byte{EncodeUint32Key(1), EncodeUint32Key(5), EncodeUint32Key(9)}
	n.Values = [][]byte{EncodeUint64Value(10), EncodeUint64Value(50), EncodeUint64Value(90)}

	buf := make([]byte, cfg.BlockSize())
	rand.New(rand.NewSource(1)).Read(buf) // garbage padding the codec must tolerate

	if err := Encode(n, cfg, buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(cfg, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Type != Leaf || got.Offset != n.Offset || got.Prev != n.Prev || got.Next != n.Next {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if got.Size() != n.Size() {
		t.Fatalf("size mismatch: got %d, want %d", got.Size(), n.Size())
	}
	for i := range n.Keys {
		if DecodeUint32Key(got.Keys[i]) != DecodeUint32Key(n.Keys[i]) {
			t.Errorf("key %d: got %d, want %d", i, DecodeUint32Key(got.Keys[i]), DecodeUint32Key(n.Keys[i]))
		}
		if DecodeUint64Value(got.Values[i]) != DecodeUint64Value(n.Values[i]) {
			t.Errorf("value %d: got %d, want %d", i, DecodeUint64Value(got.Values[i]), DecodeUint64Value(n.Values[i]))
		}
	}
}

func TestEncodeDecodeInternalRoundTrip(t *testing.T) {
	cfg := testConfig()
	n := NewInternal(512)
	n.Keys = [][]byte{EncodeUint32Key(10), EncodeUint32Key(20)}
	n.Children = []uint64{1024, 2048, 4096}

	buf := make([]byte, cfg.BlockSize())
	if err := Encode(n, cfg, buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(cfg, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != Internal || got.Size() != 2 || len(got.Children) != 3 {
		t.Fatalf("unexpected decode: %+v", got)
	}
	for i, c := range n.Children {
		if got.Children[i] != c {
			t.Errorf("child %d: got %d, want %d", i, got.Children[i], c)
		}
	}
}

func TestEncodeDecodeFreeNode(t *testing.T) {
	cfg := testConfig()
	n := NewFree(640, 1280)

	buf := make([]byte, cfg.BlockSize())
	rand.New(rand.NewSource(2)).Read(buf)
	if err := Encode(n, cfg, buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(cfg, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != Free || got.Offset != 640 || got.Next != 1280 {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestDecodeRejectsImpossibleType(t *testing.T) {
	cfg := testConfig()
	buf := make([]byte, cfg.BlockSize())
	buf[0] = 7 // no Type value is this high
	if _, err := Decode(cfg, buf); err == nil {
		t.Fatal("expected an error decoding an impossible type tag")
	}
}

func TestEncodeRejectsWrongBufferSize(t *testing.T) {
	cfg := testConfig()
	n := NewLeaf(0)
	if err := Encode(n, cfg, make([]byte, cfg.BlockSize()-1)); err == nil {
		t.Fatal("expected an error encoding into an undersized buffer")
	}
}

func TestConfigOccupancyBounds(t *testing.T) {
	cfg := Config{Degree: 10}
	if got := cfg.LeafMin(); got != 5 {
		t.Errorf("LeafMin() = %d, want 5", got)
	}
	if got := cfg.LeafMax(); got != 10 {
		t.Errorf("LeafMax() = %d, want 10", got)
	}
	if got := cfg.InternalMin(); got != 4 {
		t.Errorf("InternalMin() = %d, want 4", got)
	}
	if got := cfg.InternalMax(); got != 9 {
		t.Errorf("InternalMax() = %d, want 9", got)
	}
}
