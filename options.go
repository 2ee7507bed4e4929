package ggcalc

import (
	"time"

	"github.com/gogpu/gpucontext"
)

// RendererOption configures a Renderer during creation.
//
// Example:
//
//	r, err := ggcalc.NewRenderer(dev, reg,
//	    ggcalc.WithBackend(ggcalc.BackendBytecode),
//	    ggcalc.WithMaxProgramLength(4096),
//	)
type RendererOption func(*rendererOptions)

// rendererOptions holds optional configuration for Renderer creation.
type rendererOptions struct {
	backend          Backend
	sourceTemplate   string
	bytecodeShader   string
	maxProgramLength int
	auto             bool
	adapter          gpucontext.AdapterInfo
	clock            func() time.Time
}

// defaultOptions returns the default renderer options.
func defaultOptions() rendererOptions {
	return rendererOptions{
		backend:        BackendSource,
		sourceTemplate: DefaultSourceTemplate(),
		bytecodeShader: DefaultBytecodeShader(),
		clock:          time.Now,
	}
}

// WithBackend sets the initial backend. The default is BackendSource.
func WithBackend(b Backend) RendererOption {
	return func(o *rendererOptions) {
		o.backend = b
	}
}

// WithSourceTemplate replaces the source backend template. It must contain
// the case placeholder line "//@@cases@@" and define everything the
// spliced cases need; otherwise the rebuild reports the error.
func WithSourceTemplate(tmpl string) RendererOption {
	return func(o *rendererOptions) {
		o.sourceTemplate = tmpl
	}
}

// WithBytecodeTemplate replaces the interpreter shader of the bytecode
// backend.
func WithBytecodeTemplate(shader string) RendererOption {
	return func(o *rendererOptions) {
		o.bytecodeShader = shader
	}
}

// WithMaxProgramLength caps bytecode programs at n pairs, below the
// device's MaxMemoryBlockHeight. Zero keeps the device limit.
func WithMaxProgramLength(n int) RendererOption {
	return func(o *rendererOptions) {
		o.maxProgramLength = n
	}
}

// WithAutoBackend lets the renderer switch backends on its own before each
// rebuild, using SelectBackend with the observed edit rate and adapter.
// An explicit SetBackend call turns auto selection off.
func WithAutoBackend(adapter gpucontext.AdapterInfo) RendererOption {
	return func(o *rendererOptions) {
		o.auto = true
		o.adapter = adapter
	}
}

// WithClock sets the time source used for edit rates and rebuild timings.
func WithClock(now func() time.Time) RendererOption {
	return func(o *rendererOptions) {
		if now != nil {
			o.clock = now
		}
	}
}
