package expr

import "github.com/gogpu/ggcalc/internal/bytecode"

// Lowered is a tree compiled for both backends.
type Lowered struct {
	// Source is a WGSL statement assigning c, for example "c = (x - y);".
	Source string

	// Bytecode is the flattened (opcode, operand) stream.
	Bytecode []float32

	// Constant is set when the tree folded to a number; Source and
	// Bytecode are then empty and Value holds the number.
	Constant bool
	Value    float64
}

// Lower simplifies n against env and produces both backend forms.
func Lower(n Node, env Env) (Lowered, error) {
	s, v, constant, err := Simplify(n, env)
	if err != nil {
		return Lowered{}, err
	}
	if constant {
		return Lowered{Constant: true, Value: v}, nil
	}
	text, err := WGSL(s)
	if err != nil {
		return Lowered{}, err
	}
	pairs, err := Bytecode(s)
	if err != nil {
		return Lowered{}, err
	}
	return Lowered{
		Source:   "c = " + text + ";",
		Bytecode: bytecode.Flatten(pairs),
	}, nil
}
