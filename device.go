package ggcalc

// ProgramHandle identifies a compiled and linked device program.
type ProgramHandle uint64

// InvalidProgram is the zero handle. No device returns it for a successful
// compilation.
const InvalidProgram ProgramHandle = 0

// Device compiles shader programs and owns their GPU resources.
//
// The renderer never inspects device state: it reports errors returned
// here and keeps the previously bound handle when a call fails. All
// methods are called from the frame loop goroutine.
type Device interface {
	// CompileAndLink builds a program for backend from complete WGSL
	// source. Errors wrap ErrDeviceCompile or ErrDeviceLink.
	CompileAndLink(backend Backend, source string) (ProgramHandle, error)

	// UploadMemoryBlock replaces the memory block texture of a bytecode
	// program with width x height RG32Float texels taken pairwise from
	// data. Errors wrap ErrUpload.
	UploadMemoryBlock(h ProgramHandle, data []float32, width, height int) error

	// UploadJumpTable replaces the jump table uniform of a bytecode
	// program. Errors wrap ErrUpload.
	UploadJumpTable(h ProgramHandle, offsets []uint32, length int) error

	// ReleaseProgram destroys a program and its resources. Unknown
	// handles are ignored.
	ReleaseProgram(h ProgramHandle)

	// MaxMemoryBlockHeight is the largest number of pairs a memory block
	// can hold.
	MaxMemoryBlockHeight() int
}
