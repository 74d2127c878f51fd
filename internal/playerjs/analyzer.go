package playerjs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Analysis bundles both transform extractions for one script. The two
// extractions are independent: either side may fail while the other
// succeeds, and callers resolve whatever streams need only the side that
// worked.
type Analysis struct {
	Signature    *OperationSet
	SignatureErr error
	Throttle     *ThrottleOperationSet
	ThrottleErr  error
}

// AnalyzeAll runs both extractions over the script.
func AnalyzeAll(s *Script) *Analysis {
	a := &Analysis{}
	a.Signature, a.SignatureErr = Analyze(s)
	a.Throttle, a.ThrottleErr = AnalyzeThrottle(s)
	return a
}

const jsIdent = `[a-zA-Z_$][a-zA-Z0-9_$]*`

// Call-site patterns naming the signature scramble entry function. The entry
// is recognizable by being fed a decoded signature and having its result
// re-encoded into the stream URL.
var sigCallSitePatterns = []*regexp.Regexp{
	// XX&&(b=YY(decodeURIComponent(b)) ... encodeURIComponent
	regexp.MustCompile(jsIdent + `&&\(` + jsIdent + `=(` + jsIdent + `)\(decodeURIComponent\(` + jsIdent + `\)\)`),
	// c.set(x,encodeURIComponent(YY(
	regexp.MustCompile(`\.set\([^,()]+,\s*encodeURIComponent\((` + jsIdent + `)\(`),
	// legacy: signature=YY(
	regexp.MustCompile(`\bsignature=(` + jsIdent + `)\(`),
}

// Analyze compiles the signature transform out of the script text. It never
// executes any of the script; extraction is purely structural:
//
//  1. find the call site that invokes the entry function and take its name,
//  2. cut out the entry function's body,
//  3. locate the helper object the body dispatches to and classify each of
//     its members into a primitive by the member body's shape,
//  4. replay the entry body's call sequence in source order, emitting one
//     Op per call.
func Analyze(s *Script) (*OperationSet, error) {
	if s == nil || strings.TrimSpace(s.Body) == "" {
		return nil, analysisErr(ErrMalformedScript, "empty script")
	}

	entry := findSignatureEntry(s.Body)
	if entry == "" {
		return nil, analysisErr(ErrEntryFunctionNotFound, "signature call site")
	}

	body, err := extractFunctionBody(s.Body, entry)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(body, `.split("")`) || !strings.Contains(body, `.join("")`) {
		return nil, &AnalysisError{
			Kind: ErrMalformedScript,
			Step: "entry body",
			Err:  fmt.Errorf("function %q does not split/join a character array", entry),
		}
	}

	helper := findHelperObject(body)
	if helper == "" {
		return nil, analysisErr(ErrHelperObjectNotFound, "entry body dispatch")
	}

	members, err := classifyHelperMembers(s.Body, helper, signatureVocabulary)
	if err != nil {
		return nil, err
	}

	ops, err := walkCallSequence(body, helper, members)
	if err != nil {
		return nil, err
	}
	return &OperationSet{Entry: entry, Ops: ops}, nil
}

func findSignatureEntry(script string) string {
	for _, re := range sigCallSitePatterns {
		if m := re.FindStringSubmatch(script); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// extractFunctionBody cuts the body of the named function out of the script
// using brace matching, skipping braces inside string literals.
func extractFunctionBody(script, name string) (string, error) {
	defs := []string{
		name + "=function(",
		name + " = function(",
		"function " + name + "(",
		name + ":function(",
	}
	start := -1
	for _, def := range defs {
		if idx := strings.Index(script, def); idx >= 0 {
			start = idx
			break
		}
	}
	if start < 0 {
		return "", &AnalysisError{
			Kind: ErrEntryFunctionNotFound,
			Step: "function definition",
			Err:  fmt.Errorf("no definition for %q", name),
		}
	}

	open := strings.IndexByte(script[start:], '{')
	if open < 0 {
		return "", analysisErr(ErrMalformedScript, "function "+name)
	}
	bodyStart := start + open + 1

	var strChar byte
	depth := 1
	for pos := bodyStart; pos < len(script); pos++ {
		b := script[pos]
		switch b {
		case '{':
			if strChar == 0 {
				depth++
			}
		case '}':
			if strChar == 0 {
				depth--
				if depth == 0 {
					return script[bodyStart:pos], nil
				}
			}
		case '`', '"', '\'':
			if pos > 1 && script[pos-1] == '\\' && script[pos-2] != '\\' {
				continue
			}
			if strChar == 0 {
				strChar = b
			} else if strChar == b {
				strChar = 0
			}
		}
	}
	return "", &AnalysisError{
		Kind: ErrMalformedScript,
		Step: "function " + name,
		Err:  fmt.Errorf("unterminated body"),
	}
}

var helperCallPattern = regexp.MustCompile(`(` + jsIdent + `)(?:\.` + jsIdent + `|\[(?:"` + jsIdent + `"|'` + jsIdent + `')\])\(` + jsIdent + `(?:,\s*-?\d+)?\)`)

// findHelperObject names the object the entry body repeatedly calls into.
func findHelperObject(entryBody string) string {
	if m := helperCallPattern.FindStringSubmatch(entryBody); len(m) > 1 {
		return m[1]
	}
	return ""
}

var helperMemberPattern = regexp.MustCompile(`(?s)(` + jsIdent + `)\s*:\s*function\s*\(\s*a\s*(?:,\s*b\s*)?\)\s*\{([^}]*)\}`)

type memberShape struct {
	kind    OpKind
	pattern *regexp.Regexp
}

// Signature helper members come in exactly three shapes. Order matters: the
// modulo swap must be probed before the plain swap, since the plain pattern
// is a subset.
var signatureVocabulary = []memberShape{
	{OpReverse, regexp.MustCompile(`^\s*(?:return\s+)?a\.reverse\(\)\s*;?\s*$`)},
	{OpSplice, regexp.MustCompile(`^\s*(?:return\s+)?a\.splice\(0\s*,\s*b\)\s*;?\s*$`)},
	{OpSwapMod, regexp.MustCompile(`a\[0\]\s*=\s*a\[b\s*%\s*a\.length\]`)},
	{OpSwap, regexp.MustCompile(`a\[0\]\s*=\s*a\[b\]`)},
}

// classifyHelperMembers extracts the helper object literal and maps every
// member function name to a primitive. A member whose body matches no known
// shape fails the whole extraction: the vocabulary is closed, and guessing
// would produce silently wrong signatures.
func classifyHelperMembers(script, helper string, vocabulary []memberShape) (map[string]OpKind, error) {
	objBody, err := extractObjectLiteral(script, helper)
	if err != nil {
		return nil, err
	}

	members := make(map[string]OpKind)
	for _, m := range helperMemberPattern.FindAllStringSubmatch(objBody, -1) {
		name, body := m[1], m[2]
		kind, ok := classifyMemberBody(body, vocabulary)
		if !ok {
			return nil, &AnalysisError{
				Kind: ErrUnrecognizedOperation,
				Step: "helper member " + helper + "." + name,
				Err:  fmt.Errorf("body matches no known primitive: %s", strings.TrimSpace(body)),
			}
		}
		members[name] = kind
	}
	if len(members) == 0 {
		return nil, &AnalysisError{
			Kind: ErrHelperObjectNotFound,
			Step: "helper object " + helper,
			Err:  fmt.Errorf("object has no function members"),
		}
	}
	return members, nil
}

func classifyMemberBody(body string, vocabulary []memberShape) (OpKind, bool) {
	for _, shape := range vocabulary {
		if shape.pattern.MatchString(body) {
			return shape.kind, true
		}
	}
	return 0, false
}

func extractObjectLiteral(script, name string) (string, error) {
	re := regexp.MustCompile(`(?:var|let|const)\s+` + regexp.QuoteMeta(name) + `\s*=\s*\{`)
	loc := re.FindStringIndex(script)
	if loc == nil {
		return "", &AnalysisError{
			Kind: ErrHelperObjectNotFound,
			Step: "helper object " + name,
			Err:  fmt.Errorf("no object literal declaration"),
		}
	}

	depth := 1
	start := loc[1]
	for pos := start; pos < len(script); pos++ {
		switch script[pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return script[start:pos], nil
			}
		}
	}
	return "", analysisErr(ErrMalformedScript, "helper object "+name)
}

var callArgsPattern = regexp.MustCompile(`^\s*` + jsIdent + `\s*(?:,\s*(-?\d+)\s*)?$`)

// walkCallSequence replays the entry body's statements in source order,
// emitting one Op per helper call. Every call site on the helper must be
// accounted for; a call whose second argument is not an integer literal
// cannot be replayed and fails the analysis rather than being skipped.
func walkCallSequence(entryBody, helper string, members map[string]OpKind) ([]Op, error) {
	callRe := regexp.MustCompile(
		regexp.QuoteMeta(helper) +
			`(?:\.(` + jsIdent + `)|\[(?:"(` + jsIdent + `)"|'(` + jsIdent + `)')\])` +
			`\(([^)]*)\)`)

	var ops []Op
	for _, call := range callRe.FindAllStringSubmatch(entryBody, -1) {
		name := firstNonEmpty(call[1], call[2], call[3])
		kind, ok := members[name]
		if !ok {
			return nil, &AnalysisError{
				Kind: ErrUnrecognizedOperation,
				Step: "call sequence",
				Err:  fmt.Errorf("call to unclassified member %s.%s", helper, name),
			}
		}
		args := callArgsPattern.FindStringSubmatch(call[4])
		if args == nil {
			return nil, &AnalysisError{
				Kind: ErrUnrecognizedOperation,
				Step: "call sequence",
				Err:  fmt.Errorf("non-literal argument in %s.%s(%s)", helper, name, call[4]),
			}
		}
		arg := 0
		if args[1] != "" {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return nil, &AnalysisError{
					Kind: ErrMalformedScript,
					Step: "call sequence",
					Err:  fmt.Errorf("argument of %s.%s: %w", helper, name, err),
				}
			}
			arg = n
		}
		ops = append(ops, Op{Kind: kind, Arg: arg})
	}
	if len(ops) == 0 {
		return nil, &AnalysisError{
			Kind: ErrMalformedScript,
			Step: "call sequence",
			Err:  fmt.Errorf("entry body contains no helper calls"),
		}
	}
	return ops, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
