package bytecode

import "testing"

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{Halt, "HALT"},
		{Const, "CONST"},
		{Pow, "POW"},
		{Abs, "ABS"},
		{Code(200), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("Code(%d).String() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCodeStackEffect(t *testing.T) {
	tests := []struct {
		code      Code
		pop, push int
	}{
		{Halt, 0, 0},
		{X, 0, 1},
		{Mul, 2, 1},
		{Sqrt, 1, 1},
	}
	for _, tt := range tests {
		pop, push := tt.code.StackEffect()
		if pop != tt.pop || push != tt.push {
			t.Errorf("%v.StackEffect() = (%d, %d), want (%d, %d)", tt.code, pop, push, tt.pop, tt.push)
		}
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten([]Pair{{Const, 1.5}, {Neg, 0}})
	want := []float32{1, 1.5, 9, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
