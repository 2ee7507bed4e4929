package gpu

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop HAL device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	device, queue := createNoopDevice(t)
	// The noop HAL accepts any shader; validation is tested separately.
	d, err := New(device, queue, append([]Option{WithValidation(false)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestNewRejectsNil(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil, nil) succeeded")
	}
}

func TestCompileAndLinkSource(t *testing.T) {
	d := newTestDevice(t)

	h, err := d.CompileAndLink(ggcalc.BackendSource, ggcalc.DefaultSourceTemplate())
	if err != nil {
		t.Fatalf("CompileAndLink: %v", err)
	}
	if h == ggcalc.InvalidProgram {
		t.Fatal("got InvalidProgram for a successful link")
	}
	if _, err := d.Pipeline(h); err != nil {
		t.Errorf("Pipeline: %v", err)
	}
	if _, err := d.BindGroup(h); err != nil {
		t.Errorf("source program has no bind group: %v", err)
	}

	h2, err := d.CompileAndLink(ggcalc.BackendSource, ggcalc.DefaultSourceTemplate())
	if err != nil {
		t.Fatal(err)
	}
	if h2 == h {
		t.Error("handles are reused")
	}
	if s := d.Stats(); s.Programs != 2 || s.Compiles != 2 {
		t.Errorf("Stats = %v", s)
	}
}

func TestMemoryBlockUpload(t *testing.T) {
	d := newTestDevice(t)
	h, err := d.CompileAndLink(ggcalc.BackendBytecode, ggcalc.DefaultBytecodeShader())
	if err != nil {
		t.Fatalf("CompileAndLink: %v", err)
	}

	if _, err := d.BindGroup(h); !errors.Is(err, ggcalc.ErrUpload) {
		t.Errorf("BindGroup before upload err = %v, want ErrUpload", err)
	}

	if err := d.UploadMemoryBlock(h, []float32{0, 0, 1, 0, 2, 5}, 1, 3); err != nil {
		t.Fatalf("UploadMemoryBlock: %v", err)
	}
	rows, gen, err := d.BlockInfo(h)
	if err != nil || rows != 3 || gen != 1 {
		t.Errorf("BlockInfo = %d, %d, %v, want 3, 1", rows, gen, err)
	}
	if got := d.Stats().MemoryBlockBytes; got != 24 {
		t.Errorf("MemoryBlockBytes = %d, want 24", got)
	}
	if _, err := d.BindGroup(h); err != nil {
		t.Errorf("BindGroup after upload: %v", err)
	}

	// An empty program becomes one sentinel row.
	if err := d.UploadMemoryBlock(h, nil, 1, 0); err != nil {
		t.Fatalf("UploadMemoryBlock(empty): %v", err)
	}
	rows, gen, _ = d.BlockInfo(h)
	if rows != 1 || gen != 2 {
		t.Errorf("BlockInfo = %d, %d, want 1, 2", rows, gen)
	}
	if got := d.Stats().MemoryBlockBytes; got != 8 {
		t.Errorf("MemoryBlockBytes = %d after replacement, want 8", got)
	}

	if err := d.UploadJumpTable(h, []uint32{0, 1}, 3); err != nil {
		t.Errorf("UploadJumpTable: %v", err)
	}
	if err := d.UploadJumpTable(h, make([]uint32, 257), 3); !errors.Is(err, ggcalc.ErrUpload) {
		t.Errorf("oversized jump table err = %v, want ErrUpload", err)
	}
}

func TestUploadFailureKeepsBlock(t *testing.T) {
	limits := gputypes.DefaultLimits()
	limits.MaxTextureDimension2D = 4
	d := newTestDevice(t, WithLimits(limits))

	if got := d.MaxMemoryBlockHeight(); got != 4 {
		t.Fatalf("MaxMemoryBlockHeight = %d, want 4", got)
	}
	h, err := d.CompileAndLink(ggcalc.BackendBytecode, ggcalc.DefaultBytecodeShader())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.UploadMemoryBlock(h, make([]float32, 6), 1, 3); err != nil {
		t.Fatal(err)
	}

	err = d.UploadMemoryBlock(h, make([]float32, 10), 1, 5)
	if !errors.Is(err, ggcalc.ErrUpload) {
		t.Fatalf("oversized block err = %v, want ErrUpload", err)
	}
	rows, gen, _ := d.BlockInfo(h)
	if rows != 3 || gen != 1 {
		t.Errorf("BlockInfo = %d, %d after failed upload, want 3, 1", rows, gen)
	}
	if _, err := d.BindGroup(h); err != nil {
		t.Errorf("program lost its bind group: %v", err)
	}
}

func TestUploadErrors(t *testing.T) {
	d := newTestDevice(t)
	src, err := d.CompileAndLink(ggcalc.BackendSource, ggcalc.DefaultSourceTemplate())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		also error
	}{
		{"source program block", d.UploadMemoryBlock(src, nil, 1, 1), nil},
		{"source program jumps", d.UploadJumpTable(src, nil, 0), nil},
		{"unknown handle", d.UploadMemoryBlock(999, nil, 1, 1), ggcalc.ErrInvalidHandle},
		{"zero width", d.UploadMemoryBlock(src, nil, 0, 1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ggcalc.ErrUpload) {
				t.Errorf("err = %v, want ErrUpload", tt.err)
			}
			if tt.also != nil && !errors.Is(tt.err, tt.also) {
				t.Errorf("err = %v, want also %v", tt.err, tt.also)
			}
		})
	}
}

func TestReleaseProgram(t *testing.T) {
	d := newTestDevice(t)
	h, err := d.CompileAndLink(ggcalc.BackendBytecode, ggcalc.DefaultBytecodeShader())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.UploadMemoryBlock(h, make([]float32, 4), 1, 2); err != nil {
		t.Fatal(err)
	}

	d.ReleaseProgram(h)
	d.ReleaseProgram(h)
	d.ReleaseProgram(12345)

	if s := d.Stats(); s.Programs != 0 || s.MemoryBlockBytes != 0 {
		t.Errorf("Stats after release = %v", s)
	}
	if _, err := d.Pipeline(h); !errors.Is(err, ggcalc.ErrInvalidHandle) {
		t.Errorf("Pipeline after release err = %v", err)
	}
}

func TestValidationRejectsInvalidWGSL(t *testing.T) {
	device, queue := createNoopDevice(t)
	d, err := New(device, queue, WithValidation(true))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	h, err := d.CompileAndLink(ggcalc.BackendSource, "fn eval( {")
	if !errors.Is(err, ggcalc.ErrDeviceCompile) {
		t.Fatalf("err = %v, want ErrDeviceCompile", err)
	}
	if h != ggcalc.InvalidProgram {
		t.Errorf("handle = %d on failure", h)
	}
	if s := d.Stats(); s.CompileErrors != 1 || s.Programs != 0 {
		t.Errorf("Stats = %v", s)
	}
}

func TestUnknownBackend(t *testing.T) {
	d := newTestDevice(t)
	if _, err := d.CompileAndLink(ggcalc.Backend(7), ""); !errors.Is(err, ggcalc.ErrDeviceLink) {
		t.Errorf("err = %v, want ErrDeviceLink", err)
	}
}

func TestWriteUniforms(t *testing.T) {
	d := newTestDevice(t)
	v := ggcalc.Viewport{Scale: 0.01, Width: 640, Height: 480}
	if err := d.WriteFrame(v); err != nil {
		t.Errorf("WriteFrame: %v", err)
	}
	snap := []ggcalc.Expression{{Color: ggcalc.RGB(1, 0, 0), Visible: true}}
	if err := d.WriteStyles(snap); err != nil {
		t.Errorf("WriteStyles: %v", err)
	}
}

func TestClose(t *testing.T) {
	device, queue := createNoopDevice(t)
	d, err := New(device, queue, WithValidation(false))
	if err != nil {
		t.Fatal(err)
	}
	h, _ := d.CompileAndLink(ggcalc.BackendSource, ggcalc.DefaultSourceTemplate())

	d.Close()
	d.Close()

	if _, err := d.CompileAndLink(ggcalc.BackendSource, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("CompileAndLink after Close err = %v", err)
	}
	if _, err := d.Pipeline(h); !errors.Is(err, ErrClosed) {
		t.Errorf("Pipeline after Close err = %v", err)
	}
	if err := d.WriteFrame(ggcalc.Viewport{}); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame after Close err = %v", err)
	}
}

func TestDeviceLogging(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDevice(t)
	d.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	if _, err := d.CompileAndLink(ggcalc.BackendSource, ggcalc.DefaultSourceTemplate()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "program linked") {
		t.Errorf("expected debug output, got: %s", buf.String())
	}
}

// TestRendererOnNoopDevice drives a full renderer against the HAL device.
func TestRendererOnNoopDevice(t *testing.T) {
	d := newTestDevice(t)
	reg := ggcalc.NewRegistry()
	r, err := ggcalc.NewRenderer(d, reg, ggcalc.WithBackend(ggcalc.BackendBytecode))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := reg.Add(ggcalc.Expression{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Add(ggcalc.Expression{Bytecode: []float32{1, 0, 2, 5}}); err != nil {
		t.Fatal(err)
	}
	out := r.ResolvePendingRebuild()
	if out.Err != nil {
		t.Fatalf("rebuild: %v", out.Err)
	}
	rows, gen, err := d.BlockInfo(r.Program())
	if err != nil || rows != 3 || gen != 1 {
		t.Errorf("BlockInfo = %d, %d, %v, want 3, 1", rows, gen, err)
	}

	// A content edit refreshes the same program.
	h := r.Program()
	if _, err := reg.Add(ggcalc.Expression{Bytecode: []float32{3, 0}}); err != nil {
		t.Fatal(err)
	}
	out = r.ResolvePendingRebuild()
	if out.Err != nil || out.Action != ggcalc.RebuildReupload || r.Program() != h {
		t.Fatalf("refresh outcome = %+v", out)
	}
	rows, gen, _ = d.BlockInfo(h)
	if rows != 4 || gen != 2 {
		t.Errorf("BlockInfo = %d, %d after refresh, want 4, 2", rows, gen)
	}

	// Switching backend replaces the program and releases the old one.
	r.SetBackend(ggcalc.BackendSource)
	if out := r.ResolvePendingRebuild(); out.Err != nil {
		t.Fatal(out.Err)
	}
	if s := d.Stats(); s.Programs != 1 || s.MemoryBlockBytes != 0 {
		t.Errorf("Stats after switch = %v", s)
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Programs: 2, MemoryBlockBytes: 4096, Compiles: 5, CompileErrors: 1, Uploads: 9}
	want := "Device[2 programs, 4 KB blocks, 5 compiles (1 failed), 9 uploads]"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
