package ggcalc

import (
	"errors"

	"github.com/gogpu/ggcalc/internal/bytecode"
	"github.com/gogpu/ggcalc/internal/source"
)

// Compiler errors.
var (
	// ErrProgramOverflow is reported when the combined bytecode program has
	// more pairs than the device memory block can hold. Nothing is uploaded
	// and the previous program stays bound.
	ErrProgramOverflow = bytecode.ErrProgramOverflow

	// ErrMisalignedInstructionStream marks an expression whose raw bytecode
	// has odd length. The expression is replaced by the sentinel pair and
	// listed in BytecodeArtifact.Rejected; the rebuild still succeeds.
	ErrMisalignedInstructionStream = bytecode.ErrMisalignedInstructionStream

	// ErrNoPlaceholder is returned for a source template without the case
	// placeholder.
	ErrNoPlaceholder = source.ErrNoPlaceholder
)

// Device errors. Device implementations wrap these so callers can match
// with errors.Is.
var (
	ErrDeviceCompile = errors.New("ggcalc: shader compilation failed")
	ErrDeviceLink    = errors.New("ggcalc: program link failed")
	ErrUpload        = errors.New("ggcalc: memory block upload failed")
	ErrInvalidHandle = errors.New("ggcalc: invalid program handle")
)

// Registry and renderer errors.
var (
	ErrRegistryFull      = errors.New("ggcalc: registry full")
	ErrUnknownExpression = errors.New("ggcalc: unknown expression id")
	ErrNilDevice         = errors.New("ggcalc: nil device")
	ErrClosed            = errors.New("ggcalc: renderer closed")
)
