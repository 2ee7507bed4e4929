package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WGSL returns the WGSL expression text for n. Every compound subexpression
// is parenthesized, so the output does not depend on operator precedence.
func WGSL(n Node) (string, error) {
	var b strings.Builder
	if err := writeWGSL(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeWGSL(b *strings.Builder, n Node) error {
	switch n := n.(type) {
	case Constant:
		lit, err := floatLiteral(n.Value)
		if err != nil {
			return err
		}
		b.WriteString(lit)
	case Variable:
		return fmt.Errorf("%q: %w", n.Name, ErrUnbound)
	case Unknown:
		if n.Name != "x" && n.Name != "y" {
			return fmt.Errorf("unknown %q: %w", n.Name, ErrInvalidNode)
		}
		b.WriteString(n.Name)
	case Unary:
		if n.Op == Minus {
			b.WriteString("(-")
			if err := writeWGSL(b, n.Child); err != nil {
				return err
			}
			b.WriteByte(')')
			return nil
		}
		name, ok := wgslFuncs[n.Op]
		if !ok {
			return fmt.Errorf("unary op %d: %w", n.Op, ErrInvalidNode)
		}
		b.WriteString(name)
		b.WriteByte('(')
		if err := writeWGSL(b, n.Child); err != nil {
			return err
		}
		b.WriteByte(')')
	case Binary:
		switch n.Op {
		case Division:
			b.WriteByte('(')
			if err := writeWGSL(b, n.LHS); err != nil {
				return err
			}
			b.WriteString(" / ")
			if err := writeWGSL(b, n.RHS); err != nil {
				return err
			}
			b.WriteByte(')')
		case Power:
			b.WriteString("pow(")
			if err := writeWGSL(b, n.LHS); err != nil {
				return err
			}
			b.WriteString(", ")
			if err := writeWGSL(b, n.RHS); err != nil {
				return err
			}
			b.WriteByte(')')
		default:
			return fmt.Errorf("binary op %d: %w", n.Op, ErrInvalidNode)
		}
	case NAry:
		if len(n.Children) == 0 {
			return fmt.Errorf("empty n-ary: %w", ErrInvalidNode)
		}
		sym := " + "
		if n.Op == Multiply {
			sym = " * "
		} else if n.Op != Add {
			return fmt.Errorf("n-ary op %d: %w", n.Op, ErrInvalidNode)
		}
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				// a + (-b) prints as a - b.
				if u, ok := c.(Unary); ok && n.Op == Add && u.Op == Minus {
					b.WriteString(" - ")
					if err := writeWGSL(b, u.Child); err != nil {
						return err
					}
					continue
				}
				b.WriteString(sym)
			}
			if err := writeWGSL(b, c); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	default:
		return fmt.Errorf("%T: %w", n, ErrInvalidNode)
	}
	return nil
}

var wgslFuncs = map[UnaryOp]string{
	Sin:  "sin",
	Cos:  "cos",
	Tan:  "tan",
	Exp:  "exp",
	Ln:   "log",
	Sqrt: "sqrt",
	Abs:  "abs",
}

// floatLiteral formats v at float32 precision so that WGSL reads it as a
// floating point literal: it always carries a '.' or an exponent, and
// negative values are parenthesized.
func floatLiteral(v float64) (string, error) {
	f := float32(v)
	if math.IsNaN(v) || math.IsInf(float64(f), 0) {
		return "", fmt.Errorf("%v: %w", v, ErrNonFinite)
	}
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	if strings.HasPrefix(s, "-") {
		s = "(" + s + ")"
	}
	return s, nil
}
