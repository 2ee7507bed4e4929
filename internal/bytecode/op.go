// Package bytecode implements the interpreted backend of ggcalc: the
// instruction set, the program/jump-table compiler, the memory block encoding
// and a CPU reference interpreter that mirrors the WGSL interpreter loop.
package bytecode

// Code is an opcode. It travels to the device as a float32 in the R channel
// of the memory block, so values must stay small integers.
type Code uint8

const (
	// Halt stops execution. The pair (Halt, 0) is the sentinel emitted for
	// expressions without bytecode.
	Halt Code = 0

	// Push
	Const Code = 1 // push operand
	X     Code = 2 // push x
	Y     Code = 3 // push y

	// Binary: pop b, pop a, push a op b
	Add Code = 4
	Sub Code = 5
	Mul Code = 6
	Div Code = 7
	Pow Code = 8

	// Unary: pop a, push f(a)
	Neg  Code = 9
	Sin  Code = 10
	Cos  Code = 11
	Tan  Code = 12
	Exp  Code = 13
	Log  Code = 14
	Sqrt Code = 15
	Abs  Code = 16
)

// invalidCode is the decoded form of any opcode outside the instruction set.
const invalidCode Code = 255

// MaxStack is the operand stack depth of the interpreter, on the CPU and in
// the shader.
const MaxStack = 16

var names = [...]string{
	Halt:  "HALT",
	Const: "CONST",
	X:     "X",
	Y:     "Y",
	Add:   "ADD",
	Sub:   "SUB",
	Mul:   "MUL",
	Div:   "DIV",
	Pow:   "POW",
	Neg:   "NEG",
	Sin:   "SIN",
	Cos:   "COS",
	Tan:   "TAN",
	Exp:   "EXP",
	Log:   "LOG",
	Sqrt:  "SQRT",
	Abs:   "ABS",
}

// String returns the mnemonic of the opcode.
func (c Code) String() string {
	if int(c) < len(names) && names[c] != "" {
		return names[c]
	}
	return "UNKNOWN"
}

// Valid reports whether c is part of the instruction set.
func (c Code) Valid() bool {
	return c <= Abs
}

// StackEffect returns the number of values popped and pushed by c.
func (c Code) StackEffect() (pop, push int) {
	switch {
	case c == Halt:
		return 0, 0
	case c >= Const && c <= Y:
		return 0, 1
	case c >= Add && c <= Pow:
		return 2, 1
	default:
		return 1, 1
	}
}

// Pair is one (opcode, operand) instruction.
type Pair struct {
	Op      Code
	Operand float32
}

// Flatten converts pairs to the raw float stream carried by expressions.
func Flatten(pairs []Pair) []float32 {
	out := make([]float32, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, float32(p.Op), p.Operand)
	}
	return out
}
