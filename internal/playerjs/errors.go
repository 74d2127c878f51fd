package playerjs

import "fmt"

// AnalysisKind classifies why player script analysis failed.
type AnalysisKind int

const (
	// ErrEntryFunctionNotFound means no known call-site pattern matched, so
	// the scramble entry function could not be named.
	ErrEntryFunctionNotFound AnalysisKind = iota
	// ErrHelperObjectNotFound means the entry function was located but the
	// helper object it dispatches to was not.
	ErrHelperObjectNotFound
	// ErrUnrecognizedOperation means a helper member's body matched none of
	// the known primitive shapes, or an extracted argument was invalid for
	// its input at apply time.
	ErrUnrecognizedOperation
	// ErrMalformedScript means the script text itself could not be walked
	// (unterminated function body, empty input, and the like).
	ErrMalformedScript
)

func (k AnalysisKind) String() string {
	switch k {
	case ErrEntryFunctionNotFound:
		return "entry function not found"
	case ErrHelperObjectNotFound:
		return "helper object not found"
	case ErrUnrecognizedOperation:
		return "unrecognized operation"
	case ErrMalformedScript:
		return "malformed script"
	}
	return fmt.Sprintf("AnalysisKind(%d)", int(k))
}

// AnalysisError reports a failed extraction step. Analysis failures are not
// retried: they mean the obfuscation shape changed and the pattern rules
// need updating.
type AnalysisError struct {
	Kind AnalysisKind
	Step string
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("player script analysis: %s at %s: %v", e.Kind, e.Step, e.Err)
	}
	return fmt.Sprintf("player script analysis: %s at %s", e.Kind, e.Step)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func analysisErr(kind AnalysisKind, step string) *AnalysisError {
	return &AnalysisError{Kind: kind, Step: step}
}
