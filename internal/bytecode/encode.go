package bytecode

import (
	"encoding/binary"
	"math"
)

// BytesPerRow is the size of one memory block row: two float32 channels
// (RG32Float) holding opcode and operand.
const BytesPerRow = 8

// JumpTableCapacity is the number of offsets in the jump-table uniform.
// It is also the number of expressions a program can dispatch to.
const JumpTableCapacity = 256

// jumpTableHeader is count, length and two padding words.
const jumpTableHeader = 16

// JumpTableSize is the byte size of the jump-table uniform buffer.
const JumpTableSize = jumpTableHeader + JumpTableCapacity*4

// EncodeMemoryBlock packs a width x height block of (opcode, operand) rows
// into little-endian RG32Float texel data. Missing rows are padded with the
// sentinel pair, so an empty program still produces one valid row when
// height is 1.
func EncodeMemoryBlock(data []float32, width, height int) []byte {
	texels := width * height
	out := make([]byte, texels*BytesPerRow)
	for i := 0; i < texels*2 && i < len(data); i++ {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(data[i]))
	}
	return out
}

// EncodeJumpTable packs offsets into the std140-compatible uniform layout
// used by the interpreter shader:
//
//	struct Jumps {
//	    count:   u32,
//	    length:  u32,
//	    _pad:    vec2<u32>,
//	    offsets: array<vec4<u32>, 64>,
//	}
//
// Offsets beyond JumpTableCapacity are dropped; callers reject such
// registries earlier.
func EncodeJumpTable(offsets []uint32, length int) []byte {
	out := make([]byte, JumpTableSize)
	n := min(len(offsets), JumpTableCapacity)
	binary.LittleEndian.PutUint32(out[0:], uint32(n))      //nolint:gosec // n <= JumpTableCapacity
	binary.LittleEndian.PutUint32(out[4:], uint32(length)) //nolint:gosec // length bounded by texture height
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[jumpTableHeader+i*4:], offsets[i])
	}
	return out
}
