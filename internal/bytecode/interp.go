package bytecode

import "math"

// Eval runs expression id of p at (x, y). It executes from the expression's
// jump target until Halt or the start of the next expression. ok is false
// when the expression produces no value: empty stack, stack underflow or
// overflow, an unknown opcode, or an id outside the jump table.
//
// The loop matches the WGSL interpreter instruction for instruction and
// computes in float32.
func (p *Program) Eval(id int, x, y float32) (value float32, ok bool) {
	if id < 0 || id >= len(p.JumpTable) {
		return 0, false
	}
	return Run(p.Data, int(p.JumpTable[id]), p.End(id), x, y)
}

// Run interprets the pairs of data in [start, end).
func Run(data []float32, start, end int, x, y float32) (value float32, ok bool) {
	var stack [MaxStack]float32
	sp := 0
	for pc := start; pc < end && 2*pc+1 < len(data); pc++ {
		op := Decode(data[2*pc])
		arg := data[2*pc+1]

		pop, push := op.StackEffect()
		if !op.Valid() || sp < pop || sp-pop+push > MaxStack {
			return 0, false
		}

		switch op {
		case Halt:
			pc = end
		case Const:
			stack[sp] = arg
		case X:
			stack[sp] = x
		case Y:
			stack[sp] = y
		case Add:
			stack[sp-2] += stack[sp-1]
		case Sub:
			stack[sp-2] -= stack[sp-1]
		case Mul:
			stack[sp-2] *= stack[sp-1]
		case Div:
			stack[sp-2] /= stack[sp-1]
		case Pow:
			stack[sp-2] = f32(math.Pow, stack[sp-2], stack[sp-1])
		case Neg:
			stack[sp-1] = -stack[sp-1]
		case Sin:
			stack[sp-1] = f1(math.Sin, stack[sp-1])
		case Cos:
			stack[sp-1] = f1(math.Cos, stack[sp-1])
		case Tan:
			stack[sp-1] = f1(math.Tan, stack[sp-1])
		case Exp:
			stack[sp-1] = f1(math.Exp, stack[sp-1])
		case Log:
			stack[sp-1] = f1(math.Log, stack[sp-1])
		case Sqrt:
			stack[sp-1] = f1(math.Sqrt, stack[sp-1])
		case Abs:
			stack[sp-1] = f1(math.Abs, stack[sp-1])
		}
		sp += push - pop
	}
	if sp == 0 {
		return 0, false
	}
	return stack[sp-1], true
}

// Decode converts an opcode as the shader does with u32(): the value is
// truncated toward zero and saturated, so negative values decode to Halt.
// Values that truncate past the last opcode, and NaN, decode to an invalid
// code.
func Decode(f float32) Code {
	switch {
	case math.IsNaN(float64(f)):
		return invalidCode
	case f < 1:
		return Halt
	case f >= float32(Abs)+1:
		return invalidCode
	default:
		return Code(f)
	}
}

func f1(fn func(float64) float64, a float32) float32 {
	return float32(fn(float64(a)))
}

func f32(fn func(float64, float64) float64, a, b float32) float32 {
	return float32(fn(float64(a), float64(b)))
}
