package expr

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnbound is returned for a Variable missing from the Env.
	ErrUnbound = errors.New("expr: unbound variable")

	// ErrInvalidNode is returned for malformed trees: nil children,
	// unknown operators, empty n-ary nodes or unknowns other than x and y.
	ErrInvalidNode = errors.New("expr: invalid node")

	// ErrNonFinite is returned when a constant is NaN or infinite and so
	// has no WGSL literal.
	ErrNonFinite = errors.New("expr: non-finite constant")

	// ErrStackDepth is returned when an expression needs more operand
	// stack than the interpreter provides.
	ErrStackDepth = errors.New("expr: expression too deep for interpreter stack")
)

// Eval evaluates n at (x, y).
func Eval(n Node, env Env, x, y float64) (float64, error) {
	switch n := n.(type) {
	case Constant:
		return n.Value, nil
	case Variable:
		v, ok := env[n.Name]
		if !ok {
			return 0, fmt.Errorf("%q: %w", n.Name, ErrUnbound)
		}
		return v, nil
	case Unknown:
		switch n.Name {
		case "x":
			return x, nil
		case "y":
			return y, nil
		}
		return 0, fmt.Errorf("unknown %q: %w", n.Name, ErrInvalidNode)
	case Unary:
		a, err := Eval(n.Child, env, x, y)
		if err != nil {
			return 0, err
		}
		return applyUnary(n.Op, a)
	case Binary:
		a, err := Eval(n.LHS, env, x, y)
		if err != nil {
			return 0, err
		}
		b, err := Eval(n.RHS, env, x, y)
		if err != nil {
			return 0, err
		}
		return applyBinary(n.Op, a, b)
	case NAry:
		if len(n.Children) == 0 {
			return 0, fmt.Errorf("empty n-ary: %w", ErrInvalidNode)
		}
		acc, err := Eval(n.Children[0], env, x, y)
		if err != nil {
			return 0, err
		}
		for _, c := range n.Children[1:] {
			v, err := Eval(c, env, x, y)
			if err != nil {
				return 0, err
			}
			switch n.Op {
			case Add:
				acc += v
			case Multiply:
				acc *= v
			default:
				return 0, fmt.Errorf("n-ary op %d: %w", n.Op, ErrInvalidNode)
			}
		}
		return acc, nil
	}
	return 0, fmt.Errorf("%T: %w", n, ErrInvalidNode)
}

func applyUnary(op UnaryOp, a float64) (float64, error) {
	switch op {
	case Minus:
		return -a, nil
	case Sin:
		return math.Sin(a), nil
	case Cos:
		return math.Cos(a), nil
	case Tan:
		return math.Tan(a), nil
	case Exp:
		return math.Exp(a), nil
	case Ln:
		return math.Log(a), nil
	case Sqrt:
		return math.Sqrt(a), nil
	case Abs:
		return math.Abs(a), nil
	}
	return 0, fmt.Errorf("unary op %d: %w", op, ErrInvalidNode)
}

func applyBinary(op BinaryOp, a, b float64) (float64, error) {
	switch op {
	case Division:
		return a / b, nil
	case Power:
		return math.Pow(a, b), nil
	}
	return 0, fmt.Errorf("binary op %d: %w", op, ErrInvalidNode)
}

// Simplify folds every subtree that does not depend on x or y into a
// Constant, substituting variables from env. When the whole tree is
// constant it returns that value with constant set.
func Simplify(n Node, env Env) (out Node, value float64, constant bool, err error) {
	switch n := n.(type) {
	case Constant:
		return n, n.Value, true, nil
	case Variable:
		v, ok := env[n.Name]
		if !ok {
			return nil, 0, false, fmt.Errorf("%q: %w", n.Name, ErrUnbound)
		}
		return Constant{Value: v}, v, true, nil
	case Unknown:
		if n.Name != "x" && n.Name != "y" {
			return nil, 0, false, fmt.Errorf("unknown %q: %w", n.Name, ErrInvalidNode)
		}
		return n, 0, false, nil
	case Unary:
		if n.Child == nil {
			return nil, 0, false, fmt.Errorf("unary without operand: %w", ErrInvalidNode)
		}
		c, v, k, err := Simplify(n.Child, env)
		if err != nil {
			return nil, 0, false, err
		}
		if k {
			r, err := applyUnary(n.Op, v)
			if err != nil {
				return nil, 0, false, err
			}
			return Constant{Value: r}, r, true, nil
		}
		return Unary{Op: n.Op, Child: c}, 0, false, nil
	case Binary:
		if n.LHS == nil || n.RHS == nil {
			return nil, 0, false, fmt.Errorf("binary without operand: %w", ErrInvalidNode)
		}
		l, lv, lk, err := Simplify(n.LHS, env)
		if err != nil {
			return nil, 0, false, err
		}
		r, rv, rk, err := Simplify(n.RHS, env)
		if err != nil {
			return nil, 0, false, err
		}
		if lk && rk {
			v, err := applyBinary(n.Op, lv, rv)
			if err != nil {
				return nil, 0, false, err
			}
			return Constant{Value: v}, v, true, nil
		}
		return Binary{Op: n.Op, LHS: l, RHS: r}, 0, false, nil
	case NAry:
		return simplifyNAry(n, env)
	}
	return nil, 0, false, fmt.Errorf("%T: %w", n, ErrInvalidNode)
}

// simplifyNAry folds all constant children into one, keeping the
// non-constant ones in order. The folded constant goes last for Add and
// first for Multiply, which keeps a - b readable as a + (-b).
func simplifyNAry(n NAry, env Env) (Node, float64, bool, error) {
	if len(n.Children) == 0 {
		return nil, 0, false, fmt.Errorf("empty n-ary: %w", ErrInvalidNode)
	}
	if n.Op != Add && n.Op != Multiply {
		return nil, 0, false, fmt.Errorf("n-ary op %d: %w", n.Op, ErrInvalidNode)
	}

	identity := 0.0
	if n.Op == Multiply {
		identity = 1
	}
	acc := identity
	var folded bool
	var rest []Node
	for _, c := range n.Children {
		if c == nil {
			return nil, 0, false, fmt.Errorf("nil n-ary operand: %w", ErrInvalidNode)
		}
		s, v, k, err := Simplify(c, env)
		if err != nil {
			return nil, 0, false, err
		}
		if !k {
			rest = append(rest, s)
			continue
		}
		folded = true
		if n.Op == Add {
			acc += v
		} else {
			acc *= v
		}
	}

	if len(rest) == 0 {
		return Constant{Value: acc}, acc, true, nil
	}
	if folded && acc != identity {
		if n.Op == Add {
			rest = append(rest, Constant{Value: acc})
		} else {
			rest = append([]Node{Constant{Value: acc}}, rest...)
		}
	}
	if len(rest) == 1 {
		return rest[0], 0, false, nil
	}
	return NAry{Op: n.Op, Children: rest}, 0, false, nil
}
