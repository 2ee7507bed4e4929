package bytecode

import (
	"errors"
	"fmt"
)

var (
	// ErrProgramOverflow is returned when the combined program has more
	// pairs than the memory block can hold.
	ErrProgramOverflow = errors.New("bytecode: program exceeds memory block height")

	// ErrMisalignedInstructionStream marks a raw stream of odd length.
	ErrMisalignedInstructionStream = errors.New("bytecode: instruction stream has odd length")
)

// sentinel is the no-op pair substituted for missing or rejected streams.
var sentinel = [2]float32{float32(Halt), 0}

// Program is the compiled, combined bytecode of every expression.
type Program struct {
	// Data holds (opcode, operand) pairs back to back.
	Data []float32

	// JumpTable holds the start of each expression, in pairs.
	JumpTable []uint32

	// Length is the number of pairs in Data.
	Length int

	// Rejected lists the indices whose stream was misaligned and replaced
	// by the sentinel pair.
	Rejected []int

	// Defects holds one wrapped ErrMisalignedInstructionStream per
	// rejected index.
	Defects []error
}

// Compile concatenates streams in index order into one program. A nil or
// empty stream contributes the sentinel pair so every index has a jump
// target. An odd-length stream is rejected: it contributes the sentinel and
// is reported in Rejected.
//
// maxLength bounds the number of pairs; zero or negative means unbounded.
// Exceeding it returns ErrProgramOverflow and no program.
func Compile(streams [][]float32, maxLength int) (*Program, error) {
	size := 0
	for _, s := range streams {
		if len(s) == 0 || len(s)%2 != 0 {
			size += 2
			continue
		}
		size += len(s)
	}

	p := &Program{
		Data:      make([]float32, 0, size),
		JumpTable: make([]uint32, 0, len(streams)),
	}
	for i, s := range streams {
		p.JumpTable = append(p.JumpTable, uint32(len(p.Data)/2)) //nolint:gosec // bounded by maxLength
		switch {
		case len(s) == 0:
			p.Data = append(p.Data, sentinel[:]...)
		case len(s)%2 != 0:
			p.Data = append(p.Data, sentinel[:]...)
			p.Rejected = append(p.Rejected, i)
			p.Defects = append(p.Defects, fmt.Errorf("expression %d: %d values: %w", i, len(s), ErrMisalignedInstructionStream))
		default:
			p.Data = append(p.Data, s...)
		}
	}
	p.Length = len(p.Data) / 2

	if maxLength > 0 && p.Length > maxLength {
		return nil, fmt.Errorf("%d pairs, limit %d: %w", p.Length, maxLength, ErrProgramOverflow)
	}
	return p, nil
}

// End returns the pair offset one past the last instruction of expression
// id.
func (p *Program) End(id int) int {
	if id+1 < len(p.JumpTable) {
		return int(p.JumpTable[id+1])
	}
	return p.Length
}

// Pairs returns the program as pairs.
func (p *Program) Pairs() []Pair {
	out := make([]Pair, p.Length)
	for i := range out {
		out[i] = Pair{Op: Decode(p.Data[2*i]), Operand: p.Data[2*i+1]}
	}
	return out
}
