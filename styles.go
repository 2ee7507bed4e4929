package ggcalc

import (
	"encoding/binary"
	"math"
)

// StylesSize is the byte size of the styles uniform:
//
//	struct Styles {
//	    count: u32, _pad: 3 x u32,
//	    items: array<struct { color: vec4<f32>, flags: vec4<f32> }, 256>,
//	}
const StylesSize = 16 + MaxExpressions*styleStride

const styleStride = 32

// EncodeStyles packs the color and visibility of every slot of a registry
// snapshot into the styles uniform. Slots beyond MaxExpressions are
// dropped.
func EncodeStyles(snapshot []Expression) []byte {
	out := make([]byte, StylesSize)
	n := min(len(snapshot), MaxExpressions)
	binary.LittleEndian.PutUint32(out[0:], uint32(n)) //nolint:gosec // n <= MaxExpressions
	for i, e := range snapshot[:n] {
		off := 16 + i*styleStride
		putF32(out[off:], e.Color.R)
		putF32(out[off+4:], e.Color.G)
		putF32(out[off+8:], e.Color.B)
		putF32(out[off+12:], e.Color.A)
		if e.Visible {
			putF32(out[off+16:], 1)
		}
	}
	return out
}

// Viewport maps output pixels to the plane the expressions are evaluated
// on. y grows upward in world space and downward in pixels.
type Viewport struct {
	CenterX, CenterY float64
	Scale            float64 // world units per pixel
	Width, Height    int     // pixels

	// LineWidth is the pixel footprint tested for a sign change. Zero
	// means DefaultLineWidth.
	LineWidth float64
}

// DefaultLineWidth is the footprint used when Viewport.LineWidth is zero.
const DefaultLineWidth = 1.5

// Origin returns the world position of the top-left pixel corner.
func (v Viewport) Origin() (x, y float64) {
	return v.CenterX - v.Scale*float64(v.Width)/2, v.CenterY + v.Scale*float64(v.Height)/2
}

// ToWorld maps a pixel position to world coordinates.
func (v Viewport) ToWorld(px, py float64) (x, y float64) {
	ox, oy := v.Origin()
	return ox + px*v.Scale, oy - py*v.Scale
}

// Footprint returns LineWidth, or DefaultLineWidth when it is unset.
func (v Viewport) Footprint() float64 {
	if v.LineWidth > 0 {
		return v.LineWidth
	}
	return DefaultLineWidth
}

// FrameSize is the byte size of the frame uniform.
const FrameSize = 32

// EncodeFrame packs v into the frame uniform:
//
//	struct Frame {
//	    origin: vec2<f32>, scale: vec2<f32>, size: vec2<f32>,
//	    line_width: f32, _pad: f32,
//	}
func EncodeFrame(v Viewport) []byte {
	out := make([]byte, FrameSize)
	ox, oy := v.Origin()
	putF32(out[0:], ox)
	putF32(out[4:], oy)
	putF32(out[8:], v.Scale)
	putF32(out[12:], v.Scale)
	putF32(out[16:], float64(v.Width))
	putF32(out[20:], float64(v.Height))
	putF32(out[24:], v.Footprint())
	return out
}

func putF32(b []byte, v float64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
}
