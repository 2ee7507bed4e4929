package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/ggcalc/internal/bytecode"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrClosed is returned by operations on a closed Device.
var ErrClosed = errors.New("gpu: device closed")

// Option configures a Device.
type Option func(*options)

type options struct {
	validate bool
	format   gputypes.TextureFormat
	limits   gputypes.Limits
}

func defaultOptions() options {
	return options{
		validate: true,
		format:   gputypes.TextureFormatBGRA8Unorm,
		limits:   gputypes.DefaultLimits(),
	}
}

// WithValidation enables or disables naga validation of WGSL before it is
// handed to the HAL. Validation is on by default.
func WithValidation(on bool) Option {
	return func(o *options) {
		o.validate = on
	}
}

// WithTargetFormat sets the color format programs render to. The default
// is BGRA8Unorm.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithLimits sets the device limits. MaxTextureDimension2D bounds the
// memory block height. The default is gputypes.DefaultLimits().
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// Device implements ggcalc.Device on a HAL device and queue. It does not
// own them: Close releases the programs and shared buffers only.
//
// Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	opts   options

	next     ggcalc.ProgramHandle
	programs map[ggcalc.ProgramHandle]*program

	// Shared uniforms, created with the first program.
	frameBuf  hal.Buffer
	stylesBuf hal.Buffer

	stats  Stats
	closed bool

	logger atomic.Pointer[slog.Logger]
}

// discard is the logger of a Device without SetLogger.
var discard = slog.New(slog.DiscardHandler)

var _ ggcalc.Device = (*Device)(nil)

// New creates a Device on an open HAL device and queue.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: nil hal device or queue")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{
		device:   device,
		queue:    queue,
		opts:     o,
		programs: make(map[ggcalc.ProgramHandle]*program),
	}, nil
}

// SetLogger sets the logger for GPU operations. Called by ggcalc when a
// renderer adopts the device and on every ggcalc.SetLogger. A nil logger
// silences the device.
func (d *Device) SetLogger(l *slog.Logger) {
	d.logger.Store(l)
}

func (d *Device) log() *slog.Logger {
	if l := d.logger.Load(); l != nil {
		return l
	}
	return discard
}

// MaxMemoryBlockHeight returns the largest memory block, in pairs.
func (d *Device) MaxMemoryBlockHeight() int {
	return int(d.opts.limits.MaxTextureDimension2D)
}

// CompileAndLink creates the shader module, layouts and render pipeline
// for backend. With validation enabled the source is compiled by naga
// first.
func (d *Device) CompileAndLink(backend ggcalc.Backend, source string) (ggcalc.ProgramHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ggcalc.InvalidProgram, ErrClosed
	}
	if backend != ggcalc.BackendSource && backend != ggcalc.BackendBytecode {
		return ggcalc.InvalidProgram, fmt.Errorf("backend %v: %w", backend, ggcalc.ErrDeviceLink)
	}

	if err := d.ensureSharedBuffers(); err != nil {
		d.stats.CompileErrors++
		return ggcalc.InvalidProgram, fmt.Errorf("%w: %w", ggcalc.ErrDeviceLink, err)
	}

	shaderSource := hal.ShaderSource{WGSL: source}
	if d.opts.validate {
		words, err := compileToSPIRV(source)
		if err != nil {
			d.stats.CompileErrors++
			d.log().Warn("gpu: shader validation failed", "backend", backend, "err", err)
			return ggcalc.InvalidProgram, fmt.Errorf("%w: %w", ggcalc.ErrDeviceCompile, err)
		}
		shaderSource = hal.ShaderSource{SPIRV: words}
	}

	p := &program{backend: backend}
	if err := p.build(d, shaderSource); err != nil {
		p.destroy(d.device)
		d.stats.CompileErrors++
		d.log().Warn("gpu: program build failed", "backend", backend, "err", err)
		return ggcalc.InvalidProgram, err
	}

	d.next++
	h := d.next
	d.programs[h] = p
	d.stats.Compiles++
	d.log().Debug("gpu: program linked",
		"handle", uint64(h),
		"backend", backend,
		"validated", d.opts.validate)
	return h, nil
}

// ReleaseProgram destroys program h. Unknown handles are ignored.
func (d *Device) ReleaseProgram(h ggcalc.ProgramHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[h]
	if !ok {
		return
	}
	delete(d.programs, h)
	d.stats.MemoryBlockBytes -= p.block.bytes()
	p.destroy(d.device)
	d.log().Debug("gpu: program released", "handle", uint64(h))
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Programs = len(d.programs)
	return s
}

// Close releases every program and the shared buffers. The HAL device and
// queue stay open. Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for h, p := range d.programs {
		p.destroy(d.device)
		delete(d.programs, h)
	}
	d.stats.MemoryBlockBytes = 0
	if d.frameBuf != nil {
		d.device.DestroyBuffer(d.frameBuf)
		d.frameBuf = nil
	}
	if d.stylesBuf != nil {
		d.device.DestroyBuffer(d.stylesBuf)
		d.stylesBuf = nil
	}
}

// ensureSharedBuffers creates the frame and styles uniforms.
func (d *Device) ensureSharedBuffers() error {
	if d.frameBuf == nil {
		buf, err := d.createBuffer("ggcalc_frame", ggcalc.FrameSize)
		if err != nil {
			return err
		}
		d.frameBuf = buf
	}
	if d.stylesBuf == nil {
		buf, err := d.createBuffer("ggcalc_styles", ggcalc.StylesSize)
		if err != nil {
			return err
		}
		d.stylesBuf = buf
	}
	return nil
}

func (d *Device) createBuffer(label string, size uint64) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, nil
}

func (d *Device) lookup(h ggcalc.ProgramHandle) (*program, error) {
	if d.closed {
		return nil, ErrClosed
	}
	p, ok := d.programs[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, ggcalc.ErrInvalidHandle)
	}
	return p, nil
}

// jumpTableSize is the byte size of the jump table uniform.
const jumpTableSize = bytecode.JumpTableSize
