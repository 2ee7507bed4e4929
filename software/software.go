// Package software renders a compiled bytecode program on the CPU.
//
// The preview runs the same plot stage as the device shaders: a pixel is
// covered by an expression when its value changes sign across the pixel
// footprint, and covered expressions are composited in id order with
// premultiplied alpha. Rows are evaluated in bands on a worker pool.
//
//	p := software.New()
//	defer p.Close()
//	img, err := p.Render(renderer.BytecodeArtifact(), reg.Snapshot(), viewport)
package software

import (
	"errors"
	"image"
	"math"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/ggcalc/internal/parallel"
)

// ErrNoArtifact is returned when Render is called without a bytecode
// artifact.
var ErrNoArtifact = errors.New("software: nil bytecode artifact")

// ErrEmptyViewport is returned for a viewport without pixels or scale.
var ErrEmptyViewport = errors.New("software: empty viewport")

// DefaultBandHeight is the number of rows evaluated per job.
const DefaultBandHeight = 16

// Option configures a Preview.
type Option func(*options)

type options struct {
	workers    int
	bandHeight int
	background ggcalc.RGBA
}

// WithWorkers sets the number of worker goroutines. Zero or negative uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBandHeight sets the rows per job.
func WithBandHeight(rows int) Option {
	return func(o *options) {
		if rows > 0 {
			o.bandHeight = rows
		}
	}
}

// WithBackground sets the color under all expressions. The default is
// transparent.
func WithBackground(c ggcalc.RGBA) Option {
	return func(o *options) {
		o.background = c
	}
}

// Preview renders bytecode artifacts into images.
type Preview struct {
	opts options
	pool *parallel.WorkerPool
}

// New creates a Preview and starts its workers.
func New(opts ...Option) *Preview {
	o := options{bandHeight: DefaultBandHeight}
	for _, opt := range opts {
		opt(&o)
	}
	return &Preview{opts: o, pool: parallel.NewWorkerPool(o.workers)}
}

// Close stops the workers. Render keeps working on the calling goroutine.
func (p *Preview) Close() {
	p.pool.Close()
}

// Render plots every visible expression of snapshot using art. Expressions
// beyond the artifact, invisible ones and tombstones draw nothing.
func (p *Preview) Render(art *ggcalc.BytecodeArtifact, snapshot []ggcalc.Expression, v ggcalc.Viewport) (*image.NRGBA, error) {
	if art == nil {
		return nil, ErrNoArtifact
	}
	if v.Width <= 0 || v.Height <= 0 || v.Scale <= 0 {
		return nil, ErrEmptyViewport
	}

	styles := make([]style, 0, len(snapshot))
	for id, e := range snapshot {
		if e.Visible {
			styles = append(styles, style{id: id, color: e.Color.Premultiply()})
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, v.Width, v.Height))
	bands := parallel.SplitRows(v.Height, p.opts.bandHeight)
	p.pool.Run(len(bands), func(i int) {
		p.renderBand(img, art, styles, v, bands[i])
	})

	ggcalc.Logger().Debug("software: preview rendered",
		"width", v.Width,
		"height", v.Height,
		"expressions", len(styles),
		"bands", len(bands))
	return img, nil
}

// Render is a one-shot Preview.Render with default options.
func Render(art *ggcalc.BytecodeArtifact, snapshot []ggcalc.Expression, v ggcalc.Viewport) (*image.NRGBA, error) {
	p := New()
	defer p.Close()
	return p.Render(art, snapshot, v)
}

type style struct {
	id    int
	color ggcalc.RGBA // premultiplied
}

func (p *Preview) renderBand(img *image.NRGBA, art *ggcalc.BytecodeArtifact, styles []style, v ggcalc.Viewport, b parallel.Band) {
	half := v.Footprint() / 2
	bg := p.opts.background.Premultiply()

	for py := b.Y0; py < b.Y1; py++ {
		row := img.Pix[py*img.Stride:]
		for px := 0; px < v.Width; px++ {
			// Fragment positions are pixel centers.
			cx, cy := float64(px)+0.5, float64(py)+0.5
			x0, y0 := v.ToWorld(cx-half, cy-half)
			x1, y1 := v.ToWorld(cx+half, cy+half)

			out := bg
			for _, s := range styles {
				if covers(art, s.id, float32(x0), float32(y0), float32(x1), float32(y1)) {
					out = s.color.Over(out)
				}
			}
			putPixel(row[px*4:], out)
		}
	}
}

// covers reports whether expression id changes sign over the rectangle
// with corners (x0, y0) and (x1, y1). Any undefined corner means no
// coverage.
func covers(art *ggcalc.BytecodeArtifact, id int, x0, y0, x1, y1 float32) bool {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, c := range [4][2]float32{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		v, ok := art.Eval(id, c[0], c[1])
		if !ok {
			return false
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo <= 0 && hi >= 0
}

// putPixel stores a premultiplied color as straight NRGBA.
func putPixel(dst []byte, c ggcalc.RGBA) {
	if c.A <= 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}
	dst[0] = to8(c.R / c.A)
	dst[1] = to8(c.G / c.A)
	dst[2] = to8(c.B / c.A)
	dst[3] = to8(c.A)
}

func to8(x float64) uint8 {
	return uint8(math.Round(min(max(x, 0), 1) * 255))
}
