package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/ggcalc/gpu"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// console prints frame status lines.
type console struct {
	w io.Writer
	p *message.Printer
}

func newConsole(w io.Writer, noColor bool) *console {
	if noColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
	return &console{w: w, p: message.NewPrinter(language.English)}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func fatal(msg any) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

// outcome prints one frame's rebuild result.
func (c *console) outcome(frame int, out ggcalc.RebuildOutcome, r *ggcalc.Renderer) {
	status := green("ok")
	switch {
	case out.Err != nil:
		status = red("failed")
	case out.Action == ggcalc.RebuildNone:
		status = faint("idle")
	}
	line := c.p.Sprintf("frame %d  %-9s %-9s program %d  %s",
		frame, out.Action, out.Backend, uint64(out.Program), status)
	if out.Action != ggcalc.RebuildNone {
		line += faint(c.p.Sprintf("  %v", out.Elapsed))
	}
	fmt.Fprintln(c.w, line)

	if out.Err != nil {
		fmt.Fprintf(c.w, "  %s\n", red(out.Err))
		if out.Program != ggcalc.InvalidProgram {
			fmt.Fprintf(c.w, "  %s\n", yellow(c.p.Sprintf("keeping program %d (%v)", uint64(out.Program), r.ProgramBackend())))
		}
	}
	if art := r.BytecodeArtifact(); art != nil && out.Err == nil && out.Backend == ggcalc.BackendBytecode && out.Action != ggcalc.RebuildNone {
		fmt.Fprintln(c.w, faint(c.p.Sprintf("  %d expressions, %d pairs", len(art.JumpTable), art.Length)))
		for i, id := range art.Rejected {
			fmt.Fprintf(c.w, "  %s\n", yellow(c.p.Sprintf("expression %d rejected: %v", id, art.Defects[i])))
		}
	}
	if art := r.SourceArtifact(); art != nil && out.Err == nil && out.Backend == ggcalc.BackendSource && out.Action != ggcalc.RebuildNone {
		fmt.Fprintln(c.w, faint(c.p.Sprintf("  %d cases, %d bytes of WGSL", len(art.Cases), len(art.Shader))))
	}
}

// stats prints the device counters.
func (c *console) stats(s gpu.Stats) {
	fmt.Fprintln(c.w, c.p.Sprintf("device: %d programs, %d block bytes, %d compiles (%d failed), %d uploads",
		s.Programs, s.MemoryBlockBytes, s.Compiles, s.CompileErrors, s.Uploads))
}

// wrote reports a written file.
func (c *console) wrote(path string, what string) {
	fmt.Fprintf(c.w, "%s %s\n", green("wrote"), c.p.Sprintf("%s (%s)", path, what))
}
