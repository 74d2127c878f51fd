package playerjs

import (
	"errors"
	"testing"
)

func TestApply_LiteralFixture(t *testing.T) {
	set := &OperationSet{
		Entry: "fixture",
		Ops: []Op{
			{Kind: OpReverse},
			{Kind: OpSplice, Arg: 3},
			{Kind: OpSwap, Arg: 2},
		},
	}

	got, err := set.Apply("ABCDEFG")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != "BCDA" {
		t.Fatalf("Apply() = %q, want %q", got, "BCDA")
	}

	again, err := set.Apply("ABCDEFG")
	if err != nil {
		t.Fatalf("Apply() second run error = %v", err)
	}
	if again != got {
		t.Fatalf("Apply() not deterministic: %q then %q", got, again)
	}
}

func TestApply_DoesNotShareState(t *testing.T) {
	set := &OperationSet{Ops: []Op{{Kind: OpReverse}}}
	const input = "hello"

	first, err := set.Apply(input)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	second, err := set.Apply(first)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if second != input {
		t.Fatalf("reverse twice = %q, want original %q", second, input)
	}
}

// Reverse and swap are self-inverse, so applying a sequence of them and then
// the same sequence in reverse order must reproduce the input. Splice is not
// invertible and is excluded; it is covered by the literal fixture above.
func TestApply_RoundTripLaw(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
	}{
		{name: "reverse only", ops: []Op{{Kind: OpReverse}}},
		{name: "swap chain", ops: []Op{{Kind: OpSwap, Arg: 3}, {Kind: OpSwap, Arg: 1}}},
		{
			name: "mixed",
			ops: []Op{
				{Kind: OpReverse},
				{Kind: OpSwap, Arg: 2},
				{Kind: OpSwapMod, Arg: 9},
				{Kind: OpReverse},
			},
		},
	}

	inputs := []string{"abcdefgh", "0123456789abcdef", "xy-z_W8"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forward := &OperationSet{Ops: tt.ops}
			inverse := &OperationSet{Ops: reversedOps(tt.ops)}

			for _, input := range inputs {
				scrambled, err := forward.Apply(input)
				if err != nil {
					t.Fatalf("forward Apply(%q) error = %v", input, err)
				}
				back, err := inverse.Apply(scrambled)
				if err != nil {
					t.Fatalf("inverse Apply(%q) error = %v", scrambled, err)
				}
				if back != input {
					t.Errorf("round trip of %q = %q", input, back)
				}
			}
		})
	}
}

func reversedOps(ops []Op) []Op {
	out := make([]Op, len(ops))
	for i, op := range ops {
		out[len(ops)-1-i] = op
	}
	return out
}

func TestApply_OutOfRangeArguments(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		input string
	}{
		{name: "swap beyond length", op: Op{Kind: OpSwap, Arg: 10}, input: "abc"},
		{name: "swap negative", op: Op{Kind: OpSwap, Arg: -1}, input: "abc"},
		{name: "splice beyond length", op: Op{Kind: OpSplice, Arg: 5}, input: "abc"},
		{name: "splice negative", op: Op{Kind: OpSplice, Arg: -2}, input: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &OperationSet{Ops: []Op{tt.op}}
			_, err := set.Apply(tt.input)
			var aerr *AnalysisError
			if !errors.As(err, &aerr) {
				t.Fatalf("Apply() error = %v, want *AnalysisError", err)
			}
			if aerr.Kind != ErrUnrecognizedOperation {
				t.Fatalf("kind = %v, want %v", aerr.Kind, ErrUnrecognizedOperation)
			}
		})
	}
}

func TestApply_ModuloPrimitivesTolerateAnyArg(t *testing.T) {
	set := &ThrottleOperationSet{
		Ops: []Op{
			{Kind: OpSwapMod, Arg: 107},
			{Kind: OpRotate, Arg: 13},
		},
	}
	got, err := set.Apply("abcde")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// swapMod: 107 % 5 = 2 -> "cbade"; rotate right 13 % 5 = 3 -> "adecb"
	if got != "adecb" {
		t.Fatalf("Apply() = %q, want %q", got, "adecb")
	}
}

func TestApply_EmptyInput(t *testing.T) {
	set := &OperationSet{Ops: []Op{{Kind: OpReverse}, {Kind: OpSwapMod, Arg: 3}}}
	got, err := set.Apply("")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Apply(\"\") = %q, want empty", got)
	}
}
