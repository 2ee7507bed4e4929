package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/image/colornames"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/ggcalc/expr"
)

// Scene is a ggcalc scene file.
type Scene struct {
	// Backend is "source", "bytecode" or "auto". Empty means auto.
	Backend string `toml:"backend"`

	// Frames is the number of frames to run. Edits are applied at the
	// start of their frame.
	Frames int `toml:"frames"`

	View        View               `toml:"view"`
	Vars        map[string]float64 `toml:"vars"`
	Expressions []ExprDef          `toml:"expression"`
	Edits       []Edit             `toml:"edit"`
}

// View is the plotted region.
type View struct {
	CenterX   float64 `toml:"center_x"`
	CenterY   float64 `toml:"center_y"`
	Scale     float64 `toml:"scale"`
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	LineWidth float64 `toml:"line_width"`
}

// ExprDef defines one expression. Tree, when present, is lowered for
// both backends and overrides Source and Bytecode.
type ExprDef struct {
	Name     string    `toml:"name"`
	Color    string    `toml:"color"`
	Visible  *bool     `toml:"visible"`
	Source   string    `toml:"source"`
	Bytecode []float64 `toml:"bytecode"`
	Tree     *Term     `toml:"tree"`
}

// Term is one node of an expression tree.
type Term struct {
	Op    string  `toml:"op"`
	Value float64 `toml:"value"`
	Name  string  `toml:"name"`
	Args  []Term  `toml:"args"`
}

// Edit changes an expression at the start of a frame.
type Edit struct {
	Frame      int    `toml:"frame"`
	Expression int    `toml:"expression"`
	Action     string `toml:"action"` // show, hide, remove, color, add, compact
	Color      string `toml:"color"`

	// Def is the expression added by the "add" action.
	Def *ExprDef `toml:"def"`
}

var errScene = errors.New("invalid scene")

// LoadScene reads and decodes a scene file and fills in defaults.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return ParseScene(string(data))
}

// ParseScene decodes a scene from TOML text.
func ParseScene(text string) (*Scene, error) {
	var s Scene
	md, err := toml.Decode(text, &s)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", errScene, undecoded[0].String())
	}

	// Defaults
	if s.Frames <= 0 {
		s.Frames = 1
	}
	if s.View.Width <= 0 {
		s.View.Width = 512
	}
	if s.View.Height <= 0 {
		s.View.Height = 512
	}
	if s.View.Scale <= 0 {
		s.View.Scale = 0.02
	}
	if _, _, err := parseBackend(s.Backend); err != nil {
		return nil, err
	}
	return &s, nil
}

// Viewport returns the view as a ggcalc.Viewport.
func (s *Scene) Viewport() ggcalc.Viewport {
	return ggcalc.Viewport{
		CenterX:   s.View.CenterX,
		CenterY:   s.View.CenterY,
		Scale:     s.View.Scale,
		Width:     s.View.Width,
		Height:    s.View.Height,
		LineWidth: s.View.LineWidth,
	}
}

// parseBackend maps the scene backend name. Empty and "auto" report
// auto with the source backend as the starting point.
func parseBackend(name string) (b ggcalc.Backend, auto bool, err error) {
	if name == "" || strings.EqualFold(name, "auto") {
		return ggcalc.BackendSource, true, nil
	}
	b, err = ggcalc.ParseBackend(name)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", errScene, err)
	}
	return b, false, nil
}

// Expression builds the registry record for def. id picks the palette
// color when def has none.
func (s *Scene) Expression(def ExprDef, id int) (ggcalc.Expression, error) {
	c := ggcalc.PaletteColor(id)
	if def.Color != "" {
		var ok bool
		if c, ok = parseColor(def.Color); !ok {
			return ggcalc.Expression{}, fmt.Errorf("%w: expression %d: unknown color %q", errScene, id, def.Color)
		}
	}

	var e ggcalc.Expression
	if def.Tree != nil {
		n, err := def.Tree.Node()
		if err != nil {
			return ggcalc.Expression{}, fmt.Errorf("expression %d: %w", id, err)
		}
		if e, err = ggcalc.FromTree(n, expr.Env(s.Vars), c); err != nil {
			return ggcalc.Expression{}, fmt.Errorf("expression %d: %w", id, err)
		}
	} else {
		e = ggcalc.Expression{Source: def.Source, Color: c, Visible: true}
		if len(def.Bytecode) > 0 {
			e.Bytecode = make([]float32, len(def.Bytecode))
			for i, v := range def.Bytecode {
				e.Bytecode[i] = float32(v)
			}
		}
	}
	if def.Visible != nil {
		e.Visible = *def.Visible
	}
	return e, nil
}

// parseColor accepts an SVG color name or a hex color.
func parseColor(s string) (ggcalc.RGBA, bool) {
	if strings.HasPrefix(s, "#") {
		return ggcalc.Hex(s)
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return ggcalc.FromColor(c), true
	}
	return ggcalc.RGBA{}, false
}

var unaryOps = map[string]expr.UnaryOp{
	"neg":  expr.Minus,
	"sin":  expr.Sin,
	"cos":  expr.Cos,
	"tan":  expr.Tan,
	"exp":  expr.Exp,
	"ln":   expr.Ln,
	"sqrt": expr.Sqrt,
	"abs":  expr.Abs,
}

// Node converts the term into an expression tree.
func (t *Term) Node() (expr.Node, error) {
	args := make([]expr.Node, len(t.Args))
	for i := range t.Args {
		n, err := t.Args[i].Node()
		if err != nil {
			return nil, err
		}
		args[i] = n
	}

	arity := func(want int) error {
		if len(args) != want {
			return fmt.Errorf("%w: %s takes %d operands, got %d", errScene, t.Op, want, len(args))
		}
		return nil
	}

	switch op := strings.ToLower(t.Op); op {
	case "num", "x", "y", "var":
		if err := arity(0); err != nil {
			return nil, err
		}
		switch op {
		case "num":
			return expr.Num(t.Value), nil
		case "x":
			return expr.X(), nil
		case "y":
			return expr.Y(), nil
		}
		if t.Name == "" {
			return nil, fmt.Errorf("%w: var without name", errScene)
		}
		return expr.Var(t.Name), nil
	case "add", "mul":
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: %s takes at least 2 operands, got %d", errScene, op, len(args))
		}
		if op == "add" {
			return expr.Sum(args[0], args[1], args[2:]...), nil
		}
		return expr.Product(args[0], args[1], args[2:]...), nil
	case "sub", "div", "pow":
		if err := arity(2); err != nil {
			return nil, err
		}
		switch op {
		case "sub":
			return expr.Difference(args[0], args[1]), nil
		case "div":
			return expr.Quotient(args[0], args[1]), nil
		}
		return expr.Pow(args[0], args[1]), nil
	default:
		u, ok := unaryOps[op]
		if !ok {
			return nil, fmt.Errorf("%w: unknown op %q", errScene, t.Op)
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		return expr.Apply(u, args[0]), nil
	}
}
