package ggcalc

import (
	"image/color"
	"math"
	"strconv"
	"strings"
)

// RGBA is the draw color of an expression, straight alpha, each channel in
// [0, 1]. The styles uniform carries it to the shader as a vec4.
type RGBA struct {
	R, G, B, A float64
}

// RGB returns an opaque curve color.
func RGB(r, g, b float64) RGBA {
	return RGBA{R: r, G: g, B: b, A: 1}
}

// FromColor converts a named or decoded image color into a curve color.
func FromColor(c color.Color) RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA{R: unit(n.R), G: unit(n.G), B: unit(n.B), A: unit(n.A)}
}

func unit(v uint8) float64 { return float64(v) / 255 }

// Hex parses "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa". The leading '#' is
// optional.
func Hex(s string) (RGBA, bool) {
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3, 4:
		var b strings.Builder
		for i := range len(s) {
			b.WriteByte(s[i])
			b.WriteByte(s[i])
		}
		s = b.String()
	case 6, 8:
	default:
		return RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGBA{}, false
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return RGBA{
		R: unit(uint8(v >> 24)),
		G: unit(uint8(v >> 16)),
		B: unit(uint8(v >> 8)),
		A: unit(uint8(v)),
	}, true
}

// Premultiply scales the color channels by alpha, the form the preview
// composites in.
func (c RGBA) Premultiply() RGBA {
	return RGBA{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}
}

// Over composites c over dst. Both colors are premultiplied.
func (c RGBA) Over(dst RGBA) RGBA {
	k := 1 - c.A
	return RGBA{
		R: c.R + dst.R*k,
		G: c.G + dst.G*k,
		B: c.B + dst.B*k,
		A: c.A + dst.A*k,
	}
}

// goldenAngle spaces consecutive palette hues as far apart as possible.
const goldenAngle = 137.50776405003785

// PaletteColor returns the default color of expression id. Consecutive ids
// get well separated hues at a fixed saturation and lightness.
func PaletteColor(id int) RGBA {
	const sat, light = 0.7, 0.45
	h := math.Mod(float64(id)*goldenAngle+210, 360)
	a := sat * min(light, 1-light)
	channel := func(n float64) float64 {
		k := math.Mod(n+h/30, 12)
		return light - a*max(-1, min(k-3, 9-k, 1))
	}
	return RGB(channel(0), channel(8), channel(4))
}
