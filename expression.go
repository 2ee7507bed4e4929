package ggcalc

import "github.com/gogpu/ggcalc/expr"

// Expression is one user-defined curve.
type Expression struct {
	// ID is the registry slot. It is assigned by Registry.Add and ignored
	// on input.
	ID int

	// Source is a WGSL snippet assigning the float c from x and y, for
	// example "c = x*x - y;". Empty means the expression has no case in
	// the source backend.
	Source string

	// Bytecode is a flat (opcode, operand) stream for the interpreter.
	// Empty means the expression runs the no-op sentinel.
	Bytecode []float32

	// Color and Visible are passed to the draw stage untouched.
	Color   RGBA
	Visible bool
}

// FromTree lowers tree for both backends. A tree that folds to a constant
// has no curve and yields an expression with neither Source nor Bytecode.
func FromTree(tree expr.Node, env expr.Env, c RGBA) (Expression, error) {
	low, err := expr.Lower(tree, env)
	if err != nil {
		return Expression{}, err
	}
	return Expression{
		Source:   low.Source,
		Bytecode: low.Bytecode,
		Color:    c,
		Visible:  true,
	}, nil
}

func (e Expression) clone() Expression {
	if e.Bytecode != nil {
		e.Bytecode = append([]float32(nil), e.Bytecode...)
	}
	return e
}
