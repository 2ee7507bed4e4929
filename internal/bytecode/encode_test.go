package bytecode

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeMemoryBlock(t *testing.T) {
	data := []float32{0, 0, 1, 0, 2, 5}
	got := EncodeMemoryBlock(data, 1, 3)
	if len(got) != 3*BytesPerRow {
		t.Fatalf("len = %d, want %d", len(got), 3*BytesPerRow)
	}
	for i, want := range data {
		v := math.Float32frombits(binary.LittleEndian.Uint32(got[i*4:]))
		if v != want {
			t.Errorf("channel %d = %v, want %v", i, v, want)
		}
	}
}

func TestEncodeMemoryBlockPadsSentinel(t *testing.T) {
	got := EncodeMemoryBlock(nil, 1, 1)
	if len(got) != BytesPerRow {
		t.Fatalf("len = %d, want %d", len(got), BytesPerRow)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestEncodeJumpTable(t *testing.T) {
	got := EncodeJumpTable([]uint32{0, 1, 4}, 6)
	if len(got) != JumpTableSize {
		t.Fatalf("len = %d, want %d", len(got), JumpTableSize)
	}
	if n := binary.LittleEndian.Uint32(got[0:]); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	if n := binary.LittleEndian.Uint32(got[4:]); n != 6 {
		t.Errorf("length = %d, want 6", n)
	}
	for i, want := range []uint32{0, 1, 4} {
		if v := binary.LittleEndian.Uint32(got[16+i*4:]); v != want {
			t.Errorf("offset[%d] = %d, want %d", i, v, want)
		}
	}
}
