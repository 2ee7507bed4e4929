package ggcalc

import (
	"encoding/binary"
	"math"
	"testing"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestEncodeStyles(t *testing.T) {
	snap := []Expression{
		{Color: RGBA{R: 1, G: 0.5, B: 0.25, A: 1}, Visible: true},
		{Color: RGB(0, 1, 0)},
	}
	buf := EncodeStyles(snap)
	if len(buf) != StylesSize {
		t.Fatalf("len = %d, want %d", len(buf), StylesSize)
	}
	if n := binary.LittleEndian.Uint32(buf); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	tests := []struct {
		off  int
		want float32
	}{
		{16, 1}, {20, 0.5}, {24, 0.25}, {28, 1}, {32, 1},
		{48, 0}, {52, 1}, {56, 0}, {60, 1}, {64, 0},
	}
	for _, tt := range tests {
		if got := f32At(buf, tt.off); got != tt.want {
			t.Errorf("float at %d = %v, want %v", tt.off, got, tt.want)
		}
	}
}

func TestEncodeStylesCapacity(t *testing.T) {
	buf := EncodeStyles(make([]Expression, MaxExpressions+10))
	if n := binary.LittleEndian.Uint32(buf); n != MaxExpressions {
		t.Errorf("count = %d, want %d", n, MaxExpressions)
	}
}

func TestViewport(t *testing.T) {
	v := Viewport{CenterX: 1, CenterY: 2, Scale: 0.5, Width: 8, Height: 4}

	ox, oy := v.Origin()
	if ox != -1 || oy != 3 {
		t.Errorf("Origin = (%v, %v), want (-1, 3)", ox, oy)
	}
	if x, y := v.ToWorld(4, 2); x != 1 || y != 2 {
		t.Errorf("ToWorld(center) = (%v, %v), want (1, 2)", x, y)
	}
	if v.Footprint() != DefaultLineWidth {
		t.Errorf("Footprint = %v, want default", v.Footprint())
	}

	buf := EncodeFrame(v)
	want := []float32{-1, 3, 0.5, 0.5, 8, 4, DefaultLineWidth, 0}
	for i, w := range want {
		if got := f32At(buf, i*4); got != w {
			t.Errorf("frame[%d] = %v, want %v", i, got, w)
		}
	}
}
