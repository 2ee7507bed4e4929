package ggcalc

import (
	"strconv"
	"strings"

	"github.com/gogpu/ggcalc/internal/bytecode"
	"github.com/gogpu/ggcalc/internal/source"
)

// SourceArtifact is the output of the source backend compiler.
type SourceArtifact struct {
	// Combined holds one switch case per expression with source, in
	// ascending id order.
	Combined string

	// Shader is the template with Combined spliced in.
	Shader string

	// Cases lists the ids that received a case.
	Cases []int
}

// CompileSource builds the source artifact of a registry snapshot. It is
// deterministic: the same snapshot and template always give byte-identical
// output.
func CompileSource(snapshot []Expression, template string) (*SourceArtifact, error) {
	entries := make([]source.Entry, len(snapshot))
	for i, e := range snapshot {
		entries[i] = source.Entry{ID: i, Code: e.Source}
	}
	art := source.Compile(entries)
	shader, err := source.Splice(template, art.Combined)
	if err != nil {
		return nil, err
	}
	return &SourceArtifact{
		Combined: art.Combined,
		Shader:   shader,
		Cases:    art.Cases,
	}, nil
}

// BytecodeArtifact is the output of the bytecode backend compiler.
type BytecodeArtifact struct {
	// Program holds (opcode, operand) pairs back to back.
	Program []float32

	// JumpTable holds the first pair of each expression; it has one entry
	// per registry slot.
	JumpTable []uint32

	// Length is len(Program) / 2.
	Length int

	// Rejected lists expressions whose stream had odd length and was
	// replaced by the sentinel pair.
	Rejected []int

	// Defects holds one error wrapping ErrMisalignedInstructionStream per
	// rejected expression.
	Defects []error

	prog *bytecode.Program
}

// CompileBytecode builds the bytecode artifact of a registry snapshot.
// maxLength bounds the program in pairs; zero or negative means unbounded.
// Misaligned streams do not fail the compilation, see Rejected.
func CompileBytecode(snapshot []Expression, maxLength int) (*BytecodeArtifact, error) {
	streams := make([][]float32, len(snapshot))
	for i, e := range snapshot {
		streams[i] = e.Bytecode
	}
	p, err := bytecode.Compile(streams, maxLength)
	if err != nil {
		return nil, err
	}
	return &BytecodeArtifact{
		Program:   p.Data,
		JumpTable: p.JumpTable,
		Length:    p.Length,
		Rejected:  p.Rejected,
		Defects:   p.Defects,
		prog:      p,
	}, nil
}

// Eval runs expression id on the reference interpreter at (x, y). It
// returns the same value as the interpreter shader; ok is false where the
// shader draws nothing.
func (a *BytecodeArtifact) Eval(id int, x, y float32) (value float32, ok bool) {
	return a.prog.Eval(id, x, y)
}

// Disassemble returns the instructions of expression id, one mnemonic per
// line. CONST lines carry their operand.
func (a *BytecodeArtifact) Disassemble(id int) string {
	if id < 0 || id >= len(a.JumpTable) {
		return ""
	}
	var b strings.Builder
	for _, p := range a.prog.Pairs()[a.JumpTable[id]:a.prog.End(id)] {
		b.WriteString(p.Op.String())
		if p.Op == bytecode.Const {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(float64(p.Operand), 'g', -1, 32))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
