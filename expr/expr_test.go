package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/ggcalc/internal/bytecode"
)

func TestLowerSource(t *testing.T) {
	tests := []struct {
		name string
		tree Node
		env  Env
		want string
	}{
		{"difference", Difference(Product(X(), X()), Y()), nil, "c = ((x * x) - y);"},
		{"folded tail", Sum(X(), Num(1), Num(2)), nil, "c = (x + 3.0);"},
		{"variable", Product(Var("a"), X()), Env{"a": 2}, "c = (2.0 * x);"},
		{"negative literal", Sum(X(), Num(-0.5)), nil, "c = (x + (-0.5));"},
		{"functions", Apply(Sin, Quotient(X(), Y())), nil, "c = sin((x / y));"},
		{"pow", Pow(X(), Num(3)), nil, "c = pow(x, 3.0);"},
		{"negation", Apply(Minus, Apply(Ln, Y())), nil, "c = (-log(y));"},
		{"sqrt abs", Apply(Sqrt, Apply(Abs, X())), nil, "c = sqrt(abs(x));"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lower(tt.tree, tt.env)
			if err != nil {
				t.Fatalf("Lower: %v", err)
			}
			if got.Source != tt.want {
				t.Errorf("Source = %q, want %q", got.Source, tt.want)
			}
			if got.Constant {
				t.Error("Constant = true for a tree that depends on x or y")
			}
		})
	}
}

func TestLowerConstant(t *testing.T) {
	got, err := Lower(Product(Sum(Num(1), Num(2)), Var("k")), Env{"k": 4})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !got.Constant || got.Value != 12 {
		t.Errorf("got %+v, want constant 12", got)
	}
	if got.Source != "" || got.Bytecode != nil {
		t.Errorf("constant tree produced code: %q %v", got.Source, got.Bytecode)
	}
}

func TestLowerBytecode(t *testing.T) {
	got, err := Lower(Difference(Product(X(), X()), Y()), nil)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	want := []float32{
		float32(bytecode.X), 0,
		float32(bytecode.X), 0,
		float32(bytecode.Mul), 0,
		float32(bytecode.Y), 0,
		float32(bytecode.Sub), 0,
	}
	if len(got.Bytecode) != len(want) {
		t.Fatalf("Bytecode = %v, want %v", got.Bytecode, want)
	}
	for i := range want {
		if got.Bytecode[i] != want[i] {
			t.Fatalf("Bytecode[%d] = %v, want %v (full %v)", i, got.Bytecode[i], want[i], got.Bytecode)
		}
	}
}

func TestLowerErrors(t *testing.T) {
	tests := []struct {
		name string
		tree Node
		want error
	}{
		{"unbound", Sum(X(), Var("k")), ErrUnbound},
		{"unknown name", Unknown{Name: "z"}, ErrInvalidNode},
		{"nil child", Unary{Op: Sin}, ErrInvalidNode},
		{"empty nary", NAry{Op: Add}, ErrInvalidNode},
		{"bad unary op", Unary{Op: UnaryOp(99), Child: X()}, ErrInvalidNode},
		{"nan", Sum(X(), Num(math.NaN())), ErrNonFinite},
		{"float32 overflow", Sum(X(), Num(1e300)), ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lower(tt.tree, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFloatLiteral(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{0, "0.0"},
		{0.5, "0.5"},
		{-2, "(-2.0)"},
		{1e20, "1e+20"},
		{0.1, "0.1"},
	}
	for _, tt := range tests {
		got, err := floatLiteral(tt.in)
		if err != nil {
			t.Fatalf("floatLiteral(%v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("floatLiteral(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBytecodeStackDepth(t *testing.T) {
	// Right-nested sums keep every left operand on the stack.
	deep := func(levels int) Node {
		n := X()
		for range levels {
			n = Sum(X(), n)
		}
		return n
	}

	if _, err := Bytecode(deep(bytecode.MaxStack - 1)); err != nil {
		t.Errorf("depth %d: unexpected error %v", bytecode.MaxStack, err)
	}
	if _, err := Bytecode(deep(bytecode.MaxStack)); !errors.Is(err, ErrStackDepth) {
		t.Errorf("depth %d: err = %v, want ErrStackDepth", bytecode.MaxStack+1, err)
	}

	// The same number of leaves nested to the left needs two slots.
	n := X()
	for range 2 * bytecode.MaxStack {
		n = Sum(n, X())
	}
	if _, err := Bytecode(n); err != nil {
		t.Errorf("left-nested: unexpected error %v", err)
	}
}

func TestSimplifyKeepsUnknowns(t *testing.T) {
	got, _, constant, err := Simplify(Product(X(), Num(1)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if constant {
		t.Fatal("x * 1 folded to a constant")
	}
	if _, ok := got.(Unknown); !ok {
		t.Errorf("x * 1 simplified to %#v, want the bare unknown", got)
	}
}

// TestBackendsAgree lowers each tree once and checks both forms against
// it: the WGSL snippet must be the expected text and the bytecode stream
// must evaluate like the tree on the reference interpreter.
func TestBackendsAgree(t *testing.T) {
	env := Env{"a": 0.75, "b": -1.5}
	tests := []struct {
		name   string
		tree   Node
		source string
	}{
		{"parabola", Difference(Product(X(), X()), Y()),
			"c = ((x * x) - y);"},
		{"wave", Difference(Product(Apply(Sin, X()), Var("a")), Y()),
			"c = ((0.75 * sin(x)) - y);"},
		{"rational", Quotient(X(), Sum(Product(Y(), Y()), Num(1))),
			"c = (x / ((y * y) + 1.0));"},
		{"radial", Apply(Sqrt, Sum(Product(X(), X()), Product(Y(), Y()))),
			"c = sqrt(((x * x) + (y * y)));"},
		{"exp", Difference(Apply(Exp, Product(Var("b"), Apply(Abs, X()))), Y()),
			"c = (exp(((-1.5) * abs(x))) - y);"},
		{"pow", Difference(Pow(Apply(Abs, X()), Num(1.5)), Y()),
			"c = (pow(abs(x), 1.5) - y);"},
		{"log", Apply(Ln, Sum(Product(X(), X()), Num(1))),
			"c = log(((x * x) + 1.0));"},
		{"cos tan", Sum(Apply(Cos, Y()), Apply(Tan, Product(X(), Num(0.25)))),
			"c = (cos(y) + tan((0.25 * x)));"},
		{"negations", Apply(Minus, Difference(Apply(Minus, X()), Product(Var("b"), Y()))),
			"c = (-((-x) - ((-1.5) * y)));"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, err := Lower(tt.tree, env)
			if err != nil {
				t.Fatalf("Lower: %v", err)
			}
			if low.Source != tt.source {
				t.Errorf("Source = %q, want %q", low.Source, tt.source)
			}
			prog, err := bytecode.Compile([][]float32{low.Bytecode}, 0)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			for xi := -8; xi <= 8; xi++ {
				for yi := -8; yi <= 8; yi++ {
					x, y := float64(xi)/4, float64(yi)/4
					want, err := Eval(tt.tree, env, x, y)
					if err != nil {
						t.Fatalf("Eval: %v", err)
					}
					got, ok := prog.Eval(0, float32(x), float32(y))
					if !ok {
						t.Fatalf("(%v, %v): interpreter produced no value", x, y)
					}
					if !close32(float64(got), want) {
						t.Errorf("(%v, %v): interpreter %v, tree %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func close32(got, want float64) bool {
	if math.IsNaN(want) {
		return math.IsNaN(got)
	}
	return math.Abs(got-want) <= 1e-4*math.Max(1, math.Abs(want))
}
