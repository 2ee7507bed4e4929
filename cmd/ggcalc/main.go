// Command ggcalc plots the expressions of a scene file on a HAL device.
//
// It runs the scene's frames through a ggcalc.Renderer, printing the
// rebuild outcome of every frame, and can dump the compiled artifacts,
// a software preview and the GPU frame.
//
//	ggcalc -scene plot.toml -backend bytecode -preview plot.png -dump out/
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/ggcalc/gpu"
	"github.com/gogpu/ggcalc/internal/bytecode"
	"github.com/gogpu/ggcalc/software"
)

type config struct {
	scene    string
	device   string
	backend  string
	frames   int
	dump     string
	preview  string
	gpuOut   string
	zoom     int
	validate bool
	verbose  bool
	noColor  bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.scene, "scene", "", "scene file (TOML)")
	flag.StringVar(&cfg.device, "device", "noop", "HAL device: noop or vulkan")
	flag.StringVar(&cfg.backend, "backend", "", "override the scene backend: source, bytecode or auto")
	flag.IntVar(&cfg.frames, "frames", 0, "override the scene frame count")
	flag.StringVar(&cfg.dump, "dump", "", "write the compiled artifacts to this directory")
	flag.StringVar(&cfg.preview, "preview", "", "write a software preview PNG")
	flag.StringVar(&cfg.gpuOut, "gpu-out", "", "write the last GPU frame as PNG")
	flag.IntVar(&cfg.zoom, "zoom", 1, "integer upscale of written images")
	flag.BoolVar(&cfg.validate, "validate", true, "validate WGSL with naga before compiling")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.BoolVar(&cfg.noColor, "no-color", false, "disable colored output")
	flag.Parse()

	if cfg.scene == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fatal(err)
	}
}

func run(cfg config) error {
	con := newConsole(os.Stdout, cfg.noColor)

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	ggcalc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	scene, err := LoadScene(cfg.scene)
	if err != nil {
		return err
	}
	if cfg.backend != "" {
		scene.Backend = cfg.backend
	}
	if cfg.frames > 0 {
		scene.Frames = cfg.frames
	}
	backend, auto, err := parseBackend(scene.Backend)
	if err != nil {
		return err
	}

	dev, closeDev, info, err := openDevice(cfg.device, gpu.WithValidation(cfg.validate))
	if err != nil {
		return err
	}
	defer closeDev()
	ggcalc.Logger().Info("ggcalc: device opened", "device", cfg.device, "adapter", info.Name)

	reg := ggcalc.NewRegistry()
	for i, def := range scene.Expressions {
		e, err := scene.Expression(def, i)
		if err != nil {
			return err
		}
		if _, err := reg.Add(e); err != nil {
			return err
		}
	}

	opts := []ggcalc.RendererOption{ggcalc.WithBackend(backend)}
	if auto {
		opts = append(opts, ggcalc.WithAutoBackend(info))
	}
	r, err := ggcalc.NewRenderer(dev, reg, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	v := scene.Viewport()
	for frame := 0; frame < scene.Frames; frame++ {
		if err := scene.applyEdits(reg, frame); err != nil {
			return err
		}
		out := r.ResolvePendingRebuild()
		con.outcome(frame, out, r)
		if out.Program == ggcalc.InvalidProgram {
			continue
		}
		// Keep the uniforms current even without a readback.
		if err := dev.WriteFrame(v); err != nil {
			return err
		}
		if err := dev.WriteStyles(reg.Snapshot()); err != nil {
			return err
		}
	}

	if cfg.gpuOut != "" && r.Program() != ggcalc.InvalidProgram {
		img, err := dev.RenderFrame(r.Program(), v, reg.Snapshot())
		if err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
		if err := writePNG(cfg.gpuOut, img, cfg.zoom); err != nil {
			return err
		}
		con.wrote(cfg.gpuOut, "GPU frame")
	}

	if cfg.dump != "" {
		if err := dump(cfg.dump, r, reg, con); err != nil {
			return err
		}
	}

	if cfg.preview != "" {
		art := r.BytecodeArtifact()
		if art == nil {
			// The source backend has no bytecode artifact to preview.
			if art, err = ggcalc.CompileBytecode(reg.Snapshot(), 0); err != nil {
				return err
			}
		}
		img, err := software.Render(art, reg.Snapshot(), v)
		if err != nil {
			return err
		}
		if err := writePNG(cfg.preview, img, cfg.zoom); err != nil {
			return err
		}
		con.wrote(cfg.preview, "software preview")
	}

	con.stats(dev.Stats())
	return nil
}

// openDevice opens the named HAL device. The noop device reports a
// software adapter so auto selection prefers the bytecode backend.
func openDevice(name string, opts ...gpu.Option) (*gpu.Device, func(), gpucontext.AdapterInfo, error) {
	switch strings.ToLower(name) {
	case "noop":
		dev, closeFn, info, err := gpu.OpenWith(&noop.API{}, opts...)
		if err != nil {
			return nil, nil, info, err
		}
		if info.Name == "" {
			info.Name = "noop"
		}
		info.Type = gpucontext.AdapterTypeSoftware
		return dev, closeFn, info, nil
	case "vulkan":
		return gpu.Open(gputypes.BackendVulkan, opts...)
	}
	return nil, nil, gpucontext.AdapterInfo{}, fmt.Errorf("unknown device %q", name)
}

// applyEdits applies the edits scheduled for frame.
func (s *Scene) applyEdits(reg *ggcalc.Registry, frame int) error {
	for _, ed := range s.Edits {
		if ed.Frame != frame {
			continue
		}
		var err error
		switch strings.ToLower(ed.Action) {
		case "show", "hide":
			err = reg.SetVisible(ed.Expression, strings.EqualFold(ed.Action, "show"))
		case "remove":
			err = reg.Remove(ed.Expression)
		case "color":
			e, ok := reg.Get(ed.Expression)
			if !ok {
				return fmt.Errorf("frame %d: no expression %d", frame, ed.Expression)
			}
			c, ok := parseColor(ed.Color)
			if !ok {
				return fmt.Errorf("%w: frame %d: unknown color %q", errScene, frame, ed.Color)
			}
			e.Color = c
			err = reg.Update(ed.Expression, e)
		case "add":
			if ed.Def == nil {
				return fmt.Errorf("%w: frame %d: add without def", errScene, frame)
			}
			var e ggcalc.Expression
			if e, err = s.Expression(*ed.Def, reg.Len()); err == nil {
				_, err = reg.Add(e)
			}
		case "compact":
			reg.Compact()
		default:
			return fmt.Errorf("%w: frame %d: unknown action %q", errScene, frame, ed.Action)
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}
	return nil
}

// dump writes the artifacts of the bound program to dir.
func dump(dir string, r *ggcalc.Renderer, reg *ggcalc.Registry, con *console) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	write := func(name string, data []byte, what string) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // output files are not secret
			return err
		}
		con.wrote(path, what)
		return nil
	}

	if art := r.SourceArtifact(); art != nil {
		if err := write("shader.wgsl", []byte(art.Shader), "source shader"); err != nil {
			return err
		}
	}
	if art := r.BytecodeArtifact(); art != nil {
		var b strings.Builder
		for id := range art.JumpTable {
			fmt.Fprintf(&b, "; expression %d @ %d\n", id, art.JumpTable[id])
			b.WriteString(art.Disassemble(id))
		}
		if err := write("program.txt", []byte(b.String()), "disassembly"); err != nil {
			return err
		}
		block := bytecode.EncodeMemoryBlock(art.Program, 1, max(art.Length, 1))
		if err := write("memory.bin", block, "RG32Float memory block"); err != nil {
			return err
		}
		if err := write("jumps.bin", bytecode.EncodeJumpTable(art.JumpTable, art.Length), "jump table uniform"); err != nil {
			return err
		}
	}
	return write("styles.bin", ggcalc.EncodeStyles(reg.Snapshot()), "styles uniform")
}

// writePNG encodes img to path, scaled up by zoom.
func writePNG(path string, img image.Image, zoom int) error {
	if zoom > 1 {
		b := img.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*zoom, b.Dy()*zoom))
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		img = dst
	}
	f, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
