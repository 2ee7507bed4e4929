package ggcalc

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
)

// Backend selects how expressions reach the device.
type Backend int

const (
	// BackendSource inlines every expression into the shader as a switch
	// case. Content edits recompile the shader.
	BackendSource Backend = iota

	// BackendBytecode runs every expression on an interpreter shader from a
	// memory block texture. Content edits only re-upload the memory block.
	BackendBytecode
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendSource:
		return "Source"
	case BackendBytecode:
		return "Bytecode"
	default:
		return "Unknown"
	}
}

// ParseBackend parses a backend name as printed by String, ignoring case.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source":
		return BackendSource, nil
	case "bytecode":
		return BackendBytecode, nil
	}
	return 0, fmt.Errorf("ggcalc: unknown backend %q", s)
}

// BackendStats holds the metrics used for backend auto-selection.
type BackendStats struct {
	Expressions    int     // Registry slots, including tombstones
	ProgramLength  int     // Pairs in the last bytecode program
	EditsPerSecond float64 // Content edits observed over the last second
}

// Auto-selection thresholds.
const (
	interactiveEditRate = 2.0
	longProgram         = 4096
	longProgramIGPU     = 1024
)

// SelectBackend chooses a backend from editing activity and the adapter.
//
// Heuristics:
//   - Software adapters: Bytecode (shader compilation is the slowest step)
//   - Very long programs: Source (the interpreter loop dominates per pixel)
//   - Integrated GPUs with medium programs: Source
//   - Active editing: Bytecode (edits become data uploads)
//   - Default when idle: Source
func SelectBackend(stats BackendStats, adapter gpucontext.AdapterInfo) Backend {
	if adapter.Type == gpucontext.AdapterTypeSoftware {
		return BackendBytecode
	}

	if stats.ProgramLength > longProgram {
		return BackendSource
	}

	if adapter.Type == gpucontext.AdapterTypeIntegrated && stats.ProgramLength > longProgramIGPU {
		return BackendSource
	}

	if stats.EditsPerSecond >= interactiveEditRate {
		return BackendBytecode
	}

	return BackendSource
}
