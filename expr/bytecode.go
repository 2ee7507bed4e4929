package expr

import (
	"fmt"

	"github.com/gogpu/ggcalc/internal/bytecode"
)

// Bytecode lowers n to an interpreter instruction stream. The stream is
// rejected with ErrStackDepth when evaluating it would need more than
// bytecode.MaxStack operand slots.
func Bytecode(n Node) ([]bytecode.Pair, error) {
	l := lowering{}
	if err := l.emit(n); err != nil {
		return nil, err
	}
	return l.out, nil
}

type lowering struct {
	out   []bytecode.Pair
	depth int
}

func (l *lowering) op(c bytecode.Code, operand float32) error {
	pop, push := c.StackEffect()
	l.depth += push - pop
	if l.depth > bytecode.MaxStack {
		return fmt.Errorf("depth %d: %w", l.depth, ErrStackDepth)
	}
	l.out = append(l.out, bytecode.Pair{Op: c, Operand: operand})
	return nil
}

var unaryCodes = map[UnaryOp]bytecode.Code{
	Minus: bytecode.Neg,
	Sin:   bytecode.Sin,
	Cos:   bytecode.Cos,
	Tan:   bytecode.Tan,
	Exp:   bytecode.Exp,
	Ln:    bytecode.Log,
	Sqrt:  bytecode.Sqrt,
	Abs:   bytecode.Abs,
}

func (l *lowering) emit(n Node) error {
	switch n := n.(type) {
	case Constant:
		if _, err := floatLiteral(n.Value); err != nil {
			return err
		}
		return l.op(bytecode.Const, float32(n.Value))
	case Variable:
		return fmt.Errorf("%q: %w", n.Name, ErrUnbound)
	case Unknown:
		switch n.Name {
		case "x":
			return l.op(bytecode.X, 0)
		case "y":
			return l.op(bytecode.Y, 0)
		}
		return fmt.Errorf("unknown %q: %w", n.Name, ErrInvalidNode)
	case Unary:
		c, ok := unaryCodes[n.Op]
		if !ok {
			return fmt.Errorf("unary op %d: %w", n.Op, ErrInvalidNode)
		}
		if err := l.emit(n.Child); err != nil {
			return err
		}
		return l.op(c, 0)
	case Binary:
		var c bytecode.Code
		switch n.Op {
		case Division:
			c = bytecode.Div
		case Power:
			c = bytecode.Pow
		default:
			return fmt.Errorf("binary op %d: %w", n.Op, ErrInvalidNode)
		}
		if err := l.emit(n.LHS); err != nil {
			return err
		}
		if err := l.emit(n.RHS); err != nil {
			return err
		}
		return l.op(c, 0)
	case NAry:
		if len(n.Children) == 0 {
			return fmt.Errorf("empty n-ary: %w", ErrInvalidNode)
		}
		c := bytecode.Add
		if n.Op == Multiply {
			c = bytecode.Mul
		} else if n.Op != Add {
			return fmt.Errorf("n-ary op %d: %w", n.Op, ErrInvalidNode)
		}
		if err := l.emit(n.Children[0]); err != nil {
			return err
		}
		for _, child := range n.Children[1:] {
			if u, ok := child.(Unary); ok && n.Op == Add && u.Op == Minus {
				if err := l.emit(u.Child); err != nil {
					return err
				}
				if err := l.op(bytecode.Sub, 0); err != nil {
					return err
				}
				continue
			}
			if err := l.emit(child); err != nil {
				return err
			}
			if err := l.op(c, 0); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%T: %w", n, ErrInvalidNode)
}
