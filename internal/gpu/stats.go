package gpu

import "fmt"

// Stats contains resource and activity counters of a Device.
type Stats struct {
	// Programs is the number of live programs.
	Programs int

	// MemoryBlockBytes is the texel data held by all memory blocks.
	MemoryBlockBytes uint64

	// Compiles counts successful CompileAndLink calls.
	Compiles uint64

	// CompileErrors counts failed CompileAndLink calls.
	CompileErrors uint64

	// Uploads counts successful memory block and jump table uploads.
	Uploads uint64
}

// String returns a human-readable string of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("Device[%d programs, %d KB blocks, %d compiles (%d failed), %d uploads]",
		s.Programs,
		s.MemoryBlockBytes/1024,
		s.Compiles,
		s.CompileErrors,
		s.Uploads)
}
