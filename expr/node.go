// Package expr is a minimal, already-parsed expression tree with the two
// lowerings ggcalc consumes: a WGSL assignment snippet for the compiled
// backend and an instruction stream for the interpreted backend.
//
// There is no parser here; trees are built by an upstream frontend or with
// the constructors in this package.
package expr

// Node is an expression tree node.
type Node interface {
	node()
}

// Constant is a literal number.
type Constant struct {
	Value float64
}

// Variable is a named value bound at compile time through an Env.
type Variable struct {
	Name string
}

// Unknown is one of the per-pixel coordinates, "x" or "y".
type Unknown struct {
	Name string
}

// UnaryOp is a single-operand operation.
type UnaryOp int

const (
	Minus UnaryOp = iota
	Sin
	Cos
	Tan
	Exp
	Ln
	Sqrt
	Abs
)

// Unary applies Op to Child.
type Unary struct {
	Op    UnaryOp
	Child Node
}

// BinaryOp is a non-associative two-operand operation.
type BinaryOp int

const (
	Division BinaryOp = iota
	Power
)

// Binary applies Op to LHS and RHS.
type Binary struct {
	Op       BinaryOp
	LHS, RHS Node
}

// NAryOp is an associative operation over any number of operands.
type NAryOp int

const (
	Add NAryOp = iota
	Multiply
)

// NAry folds Op over Children left to right.
type NAry struct {
	Op       NAryOp
	Children []Node
}

func (Constant) node() {}
func (Variable) node() {}
func (Unknown) node()  {}
func (Unary) node()    {}
func (Binary) node()   {}
func (NAry) node()     {}

// Env binds variable names to values.
type Env map[string]float64

// Num returns a constant node.
func Num(v float64) Node { return Constant{Value: v} }

// X returns the horizontal coordinate.
func X() Node { return Unknown{Name: "x"} }

// Y returns the vertical coordinate.
func Y() Node { return Unknown{Name: "y"} }

// Var returns a variable reference.
func Var(name string) Node { return Variable{Name: name} }

// Sum returns the sum of its operands.
func Sum(a, b Node, rest ...Node) Node {
	return NAry{Op: Add, Children: append([]Node{a, b}, rest...)}
}

// Product returns the product of its operands.
func Product(a, b Node, rest ...Node) Node {
	return NAry{Op: Multiply, Children: append([]Node{a, b}, rest...)}
}

// Difference returns a - b, expressed as a + (-b).
func Difference(a, b Node) Node {
	return NAry{Op: Add, Children: []Node{a, Unary{Op: Minus, Child: b}}}
}

// Quotient returns a / b.
func Quotient(a, b Node) Node {
	return Binary{Op: Division, LHS: a, RHS: b}
}

// Pow returns a raised to b.
func Pow(a, b Node) Node {
	return Binary{Op: Power, LHS: a, RHS: b}
}

// Apply returns op applied to a.
func Apply(op UnaryOp, a Node) Node {
	return Unary{Op: op, Child: a}
}
