package ggcalc

import (
	"errors"
	"fmt"
	"time"
)

// editWindow is the span over which edit rates are measured.
const editWindow = time.Second

// Renderer owns the rebuild state of one plot: the active backend, the
// dirty flags, the bound program and the last good artifacts.
//
// A structural change (a new backend, or any content edit under the source
// backend) needs a new program. A content edit under the bytecode backend
// only needs a data refresh of the bound program. ResolvePendingRebuild
// performs whichever is pending, once per frame.
//
// Renderer is not safe for concurrent use; drive it from the frame loop.
type Renderer struct {
	dev  Device
	reg  *Registry
	opts rendererOptions

	backend         Backend
	structuralDirty bool
	dataDirty       bool

	program        ProgramHandle
	programBackend Backend

	sourceArt   *SourceArtifact
	bytecodeArt *BytecodeArtifact

	edits  []time.Time
	closed bool
}

// NewRenderer creates a renderer for the expressions of reg on dev and
// subscribes to reg's changes. A nil reg is replaced by an empty registry.
// Nothing is compiled until the first ResolvePendingRebuild.
func NewRenderer(dev Device, reg *Registry, opts ...RendererOption) (*Renderer, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if reg == nil {
		reg = NewRegistry()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		dev:             dev,
		reg:             reg,
		opts:            o,
		backend:         o.backend,
		structuralDirty: true,
		dataDirty:       true,
	}
	reg.OnChange(r.NotifyContentChanged)
	track(r)

	Logger().Debug("ggcalc: renderer created",
		"backend", r.backend,
		"auto", o.auto,
		"max_block_height", dev.MaxMemoryBlockHeight())
	return r, nil
}

// Registry returns the registry the renderer compiles.
func (r *Renderer) Registry() *Registry {
	return r.reg
}

// Backend returns the active backend.
func (r *Renderer) Backend() Backend {
	return r.backend
}

// SetBackend switches the active backend. Switching to a different backend
// schedules a structural rebuild; setting the current one does nothing.
// It also disables auto selection.
func (r *Renderer) SetBackend(b Backend) {
	r.opts.auto = false
	r.switchBackend(b)
}

func (r *Renderer) switchBackend(b Backend) {
	if b == r.backend {
		return
	}
	Logger().Info("ggcalc: backend switch", "from", r.backend, "to", b)
	r.backend = b
	r.structuralDirty = true
}

// NotifyContentChanged records a content edit. Under the source backend the
// edit changes the shader, so it is structural. The registry calls this on
// every mutation.
func (r *Renderer) NotifyContentChanged() {
	r.dataDirty = true
	if r.backend == BackendSource {
		r.structuralDirty = true
	}
	r.edits = append(r.edits, r.opts.clock())
}

// Pending reports the dirty flags.
func (r *Renderer) Pending() (structural, data bool) {
	return r.structuralDirty, r.dataDirty
}

// Program returns the bound program, or InvalidProgram before the first
// successful rebuild.
func (r *Renderer) Program() ProgramHandle {
	return r.program
}

// ProgramBackend returns the backend the bound program was built for. It
// differs from Backend while a switch is pending or after a failed switch.
func (r *Renderer) ProgramBackend() Backend {
	return r.programBackend
}

// SourceArtifact returns the artifact of the last successful source
// rebuild, or nil.
func (r *Renderer) SourceArtifact() *SourceArtifact {
	return r.sourceArt
}

// BytecodeArtifact returns the artifact of the last successful bytecode
// rebuild or refresh, or nil.
func (r *Renderer) BytecodeArtifact() *BytecodeArtifact {
	return r.bytecodeArt
}

// EditRate returns the content edits per second observed over the last
// second.
func (r *Renderer) EditRate() float64 {
	r.trimEdits()
	return float64(len(r.edits)) / editWindow.Seconds()
}

func (r *Renderer) trimEdits() {
	cutoff := r.opts.clock().Add(-editWindow)
	i := 0
	for i < len(r.edits) && !r.edits[i].After(cutoff) {
		i++
	}
	r.edits = append(r.edits[:0], r.edits[i:]...)
}

// ResolvePendingRebuild brings the device up to date with the registry.
//
// A pending structural change compiles the active backend's artifact,
// compiles and links a new program, uploads its data (bytecode) and only
// then swaps it in and releases the old program. A pending data change
// under the bytecode backend re-uploads the memory block and jump table of
// the bound program.
//
// The dirty flags are cleared when the rebuild starts. A failure is
// therefore reported once, in the returned outcome, and the previous
// program stays bound until the next edit or backend switch.
func (r *Renderer) ResolvePendingRebuild() RebuildOutcome {
	if r.closed {
		return RebuildOutcome{Backend: r.backend, Program: r.program, Err: ErrClosed}
	}
	if r.opts.auto {
		r.autoSelect()
	}

	start := r.opts.clock()
	var out RebuildOutcome
	switch {
	case r.structuralDirty:
		out = r.rebuild()
	case r.dataDirty && r.backend == BackendBytecode:
		if r.programBackend != BackendBytecode || r.program == InvalidProgram {
			// Nothing to refresh: the last structural rebuild failed.
			out = r.rebuild()
		} else {
			out = r.refresh()
		}
	default:
		r.dataDirty = false
		out.Action = RebuildNone
	}
	out.Backend = r.backend
	out.Program = r.program
	out.Elapsed = r.opts.clock().Sub(start)

	if out.Action != RebuildNone {
		Logger().Debug("ggcalc: rebuild",
			"action", out.Action,
			"backend", out.Backend,
			"program", uint64(out.Program),
			"elapsed", out.Elapsed,
			"err", out.Err)
	}
	return out
}

func (r *Renderer) autoSelect() {
	stats := BackendStats{
		Expressions:    r.reg.Len(),
		EditsPerSecond: r.EditRate(),
	}
	if r.bytecodeArt != nil {
		stats.ProgramLength = r.bytecodeArt.Length
	}
	r.switchBackend(SelectBackend(stats, r.opts.adapter))
}

// rebuild performs a structural rebuild for the active backend.
func (r *Renderer) rebuild() RebuildOutcome {
	r.structuralDirty = false
	r.dataDirty = false
	out := RebuildOutcome{Action: RebuildRecompile}

	snap := r.reg.Snapshot()
	switch r.backend {
	case BackendSource:
		out.Err = r.rebuildSource(snap)
	case BackendBytecode:
		out.Err = r.rebuildBytecode(snap)
	default:
		out.Err = fmt.Errorf("ggcalc: unknown backend %d", r.backend)
	}
	if out.Err != nil {
		Logger().Warn("ggcalc: rebuild failed, keeping previous program",
			"backend", r.backend,
			"program", uint64(r.program),
			"err", out.Err)
	}
	return out
}

func (r *Renderer) rebuildSource(snap []Expression) error {
	art, err := CompileSource(snap, r.opts.sourceTemplate)
	if err != nil {
		return fmt.Errorf("compile source artifact: %w", err)
	}
	Logger().Debug("ggcalc: source artifact", "slots", len(snap), "cases", len(art.Cases))

	h, err := r.dev.CompileAndLink(BackendSource, art.Shader)
	if err != nil {
		return fmt.Errorf("compile source program: %w", err)
	}
	r.swap(h, BackendSource)
	r.sourceArt = art
	return nil
}

func (r *Renderer) rebuildBytecode(snap []Expression) error {
	art, err := r.compileBytecode(snap)
	if err != nil {
		return err
	}

	h, err := r.dev.CompileAndLink(BackendBytecode, r.opts.bytecodeShader)
	if err != nil {
		return fmt.Errorf("compile interpreter program: %w", err)
	}
	if err := r.upload(h, art); err != nil {
		r.dev.ReleaseProgram(h)
		return err
	}
	r.swap(h, BackendBytecode)
	r.bytecodeArt = art
	return nil
}

// refresh re-uploads the bytecode of the bound program.
func (r *Renderer) refresh() RebuildOutcome {
	r.dataDirty = false
	out := RebuildOutcome{Action: RebuildReupload}

	art, err := r.compileBytecode(r.reg.Snapshot())
	if err == nil {
		err = r.upload(r.program, art)
	}
	if err != nil {
		out.Err = err
		Logger().Warn("ggcalc: data refresh failed, keeping previous data",
			"program", uint64(r.program),
			"err", err)
		return out
	}
	r.bytecodeArt = art
	return out
}

func (r *Renderer) compileBytecode(snap []Expression) (*BytecodeArtifact, error) {
	art, err := CompileBytecode(snap, r.maxProgramLength())
	if err != nil {
		return nil, fmt.Errorf("compile bytecode artifact: %w", err)
	}
	for i, id := range art.Rejected {
		Logger().Warn("ggcalc: rejected instruction stream",
			"id", id,
			"err", art.Defects[i])
	}
	Logger().Debug("ggcalc: bytecode artifact",
		"slots", len(snap),
		"pairs", art.Length,
		"rejected", len(art.Rejected))
	return art, nil
}

func (r *Renderer) maxProgramLength() int {
	limit := r.dev.MaxMemoryBlockHeight()
	if n := r.opts.maxProgramLength; n > 0 && (limit <= 0 || n < limit) {
		limit = n
	}
	return limit
}

func (r *Renderer) upload(h ProgramHandle, art *BytecodeArtifact) error {
	if err := r.dev.UploadMemoryBlock(h, art.Program, 1, art.Length); err != nil {
		return fmt.Errorf("upload memory block: %w", err)
	}
	if err := r.dev.UploadJumpTable(h, art.JumpTable, art.Length); err != nil {
		return fmt.Errorf("upload jump table: %w", err)
	}
	return nil
}

// swap binds h and releases the previously bound program.
func (r *Renderer) swap(h ProgramHandle, b Backend) {
	old := r.program
	r.program = h
	r.programBackend = b
	if old != InvalidProgram && old != h {
		r.dev.ReleaseProgram(old)
	}
}

// Close releases the bound program and detaches from the registry. The
// renderer cannot be used afterwards. Close is idempotent.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.reg.OnChange(nil)
	untrack(r)
	if r.program != InvalidProgram {
		r.dev.ReleaseProgram(r.program)
		r.program = InvalidProgram
	}
	return nil
}

// IsDeviceError reports whether err came from the device rather than from
// one of the compilers.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrDeviceCompile) || errors.Is(err, ErrDeviceLink) ||
		errors.Is(err, ErrUpload) || errors.Is(err, ErrInvalidHandle)
}
