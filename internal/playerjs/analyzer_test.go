package playerjs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) *Script {
	t.Helper()
	p := filepath.Join("testdata", name)
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", p, err)
	}
	return &Script{ID: name, Body: string(b)}
}

func TestAnalyze_OperationSequence(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		entry   string
		want    []Op
	}{
		{
			name:    "dotted helper calls",
			fixture: "player_fixture_v1.js",
			entry:   "Dx",
			want: []Op{
				{Kind: OpReverse, Arg: 4},
				{Kind: OpSplice, Arg: 3},
				{Kind: OpSwapMod, Arg: 2},
			},
		},
		{
			name:    "bracketed helper calls",
			fixture: "player_fixture_v2.js",
			entry:   "Tzb",
			want: []Op{
				{Kind: OpSplice, Arg: 1},
				{Kind: OpReverse, Arg: 38},
				{Kind: OpSwap, Arg: 2},
				{Kind: OpReverse, Arg: 71},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := Analyze(loadFixture(t, tt.fixture))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if ops.Entry != tt.entry {
				t.Errorf("Analyze() entry = %q, want %q", ops.Entry, tt.entry)
			}
			if len(ops.Ops) != len(tt.want) {
				t.Fatalf("Analyze() ops = %v, want %v", ops.Ops, tt.want)
			}
			for i, op := range ops.Ops {
				if op != tt.want[i] {
					t.Errorf("op %d = %v, want %v", i, op, tt.want[i])
				}
			}
		})
	}
}

func TestAnalyze_Signatures(t *testing.T) {
	tests := []struct {
		name     string
		fixture  string
		input    string
		expected string
	}{
		{name: "v1", fixture: "player_fixture_v1.js", input: "ABCDEFG", expected: "BCDA"},
		{name: "v2", fixture: "player_fixture_v2.js", input: "abcdef", expected: "bcfed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := Analyze(loadFixture(t, tt.fixture))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			got, err := ops.Apply(tt.input)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if got != tt.expected {
				t.Fatalf("Apply(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			// Same operation set, same input, same output.
			again, err := ops.Apply(tt.input)
			if err != nil {
				t.Fatalf("Apply() second run error = %v", err)
			}
			if again != got {
				t.Fatalf("Apply() is not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestAnalyze_UnrecognizedHelperMember(t *testing.T) {
	_, err := Analyze(loadFixture(t, "player_fixture_unknown_op.js"))
	var aerr *AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("Analyze() error = %v, want *AnalysisError", err)
	}
	if aerr.Kind != ErrUnrecognizedOperation {
		t.Fatalf("Analyze() kind = %v, want %v", aerr.Kind, ErrUnrecognizedOperation)
	}
}

func TestAnalyze_NonLiteralCallArgument(t *testing.T) {
	// A helper call whose second argument is a variable cannot be
	// replayed; the whole analysis must fail instead of returning a
	// truncated operation list.
	script := `var Xq={QW:function(a){a.reverse()},zx:function(a,b){a.splice(0,b)}};` +
		`var Dx=function(a){a=a.split("");Xq.QW(a,1);Xq.zx(a,c);return a.join("")};` +
		`e&&(f=Dx(decodeURIComponent(f)),d.set("sig",encodeURIComponent(f)));`
	_, err := Analyze(&Script{ID: "inline", Body: script})
	var aerr *AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("Analyze() error = %v, want *AnalysisError", err)
	}
	if aerr.Kind != ErrUnrecognizedOperation {
		t.Fatalf("Analyze() kind = %v, want %v", aerr.Kind, ErrUnrecognizedOperation)
	}
}

func TestAnalyze_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		script string
		kind   AnalysisKind
	}{
		{name: "empty script", script: "", kind: ErrMalformedScript},
		{
			name:   "no call site",
			script: "var a=function(b){return b};",
			kind:   ErrEntryFunctionNotFound,
		},
		{
			name: "entry without helper calls",
			script: `var Dx=function(a){a=a.split("");return a.join("")};` +
				`e&&(f=Dx(decodeURIComponent(f)),d.set("sig",encodeURIComponent(f)));`,
			kind: ErrHelperObjectNotFound,
		},
		{
			name: "helper object not declared",
			script: `var Dx=function(a){a=a.split("");Zz.mm(a,2);return a.join("")};` +
				`e&&(f=Dx(decodeURIComponent(f)),d.set("sig",encodeURIComponent(f)));`,
			kind: ErrHelperObjectNotFound,
		},
		{
			name: "unterminated entry body",
			script: `var Dx=function(a){a=a.split("");` +
				`e&&(f=Dx(decodeURIComponent(f))`,
			kind: ErrMalformedScript,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(&Script{ID: "inline", Body: tt.script})
			var aerr *AnalysisError
			if !errors.As(err, &aerr) {
				t.Fatalf("Analyze() error = %v, want *AnalysisError", err)
			}
			if aerr.Kind != tt.kind {
				t.Fatalf("Analyze() kind = %v, want %v (err: %v)", aerr.Kind, tt.kind, err)
			}
		})
	}
}

func TestAnalyzeAll_IndependentFailures(t *testing.T) {
	// Signature transform intact, throttle call site absent.
	script := `var Xq={QW:function(a){a.reverse()},zx:function(a,b){a.splice(0,b)}};` +
		`var Dx=function(a){a=a.split("");Xq.QW(a,1);Xq.zx(a,2);return a.join("")};` +
		`e&&(f=Dx(decodeURIComponent(f)),d.set("sig",encodeURIComponent(f)));`

	a := AnalyzeAll(&Script{ID: "inline", Body: script})
	if a.SignatureErr != nil {
		t.Fatalf("SignatureErr = %v, want nil", a.SignatureErr)
	}
	if a.Signature == nil || len(a.Signature.Ops) != 2 {
		t.Fatalf("Signature = %+v, want 2 ops", a.Signature)
	}
	if a.ThrottleErr == nil {
		t.Fatal("ThrottleErr = nil, want entry-not-found")
	}
	var aerr *AnalysisError
	if !errors.As(a.ThrottleErr, &aerr) || aerr.Kind != ErrEntryFunctionNotFound {
		t.Fatalf("ThrottleErr = %v, want kind %v", a.ThrottleErr, ErrEntryFunctionNotFound)
	}
}
