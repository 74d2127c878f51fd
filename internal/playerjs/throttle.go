package playerjs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// Throttle entry discovery. The "n" transform is invoked differently from
// the signature transform: its call site reads the n query parameter and
// writes the transformed value back, so the patterns here are disjoint from
// the signature ones.
var throttleCallSitePatterns = []*regexp.Regexp{
	// .get("n"))&&(b=XX[0](b) — indirected through a one-element array
	regexp.MustCompile(`\.get\("n"\)\)&&\(` + jsIdent + `=(` + jsIdent + `)\[(\d+)\]\(` + jsIdent + `\)`),
	// .get("n"))&&(b=XX(b)
	regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(` + jsIdent + `=(` + jsIdent + `)\(` + jsIdent + `\)`),
}

// Newer player builds drop the recognizable call site, leaving only the
// function itself: a single-argument function that splits its input, runs a
// helper-call sequence, and joins the result. Stdlib regexp cannot assert
// "followed by a split without consuming it", so this one uses regexp2
// lookahead.
var throttleBodyProbe = regexp2.MustCompile(
	`([a-zA-Z0-9_$]+)=function\(([a-zA-Z0-9_$])\)\{(?=var [a-zA-Z0-9_$]+=\2\.split\(""\))`,
	regexp2.None)

// AnalyzeThrottle compiles the throttle-parameter transform. The extraction
// mirrors Analyze but is fully independent: its own entry discovery, and a
// vocabulary extended with the numeric primitives (rotate, modulo swap) that
// throttle transforms use and signature transforms do not.
func AnalyzeThrottle(s *Script) (*ThrottleOperationSet, error) {
	if s == nil || strings.TrimSpace(s.Body) == "" {
		return nil, analysisErr(ErrMalformedScript, "empty script")
	}

	entry, err := findThrottleEntry(s.Body)
	if err != nil {
		return nil, err
	}

	body, err := extractFunctionBody(s.Body, entry)
	if err != nil {
		return nil, err
	}

	helper := findHelperObject(body)
	if helper == "" {
		return nil, analysisErr(ErrHelperObjectNotFound, "throttle body dispatch")
	}

	members, err := classifyHelperMembers(s.Body, helper, throttleVocabulary)
	if err != nil {
		return nil, err
	}

	ops, err := walkCallSequence(body, helper, members)
	if err != nil {
		return nil, err
	}
	return &ThrottleOperationSet{Entry: entry, Ops: ops}, nil
}

// throttleVocabulary is the signature vocabulary plus the numeric shapes.
var throttleVocabulary = append([]memberShape{
	// rotate right: for(b=...;b--;)a.unshift(a.pop())
	{OpRotate, regexp.MustCompile(`a\.unshift\(a\.pop\(\)\)`)},
}, signatureVocabulary...)

func findThrottleEntry(script string) (string, error) {
	for i, re := range throttleCallSitePatterns {
		m := re.FindStringSubmatch(script)
		if len(m) == 0 {
			continue
		}
		name := m[1]
		if i == 0 {
			// Indirected form: resolve var XX=[YY] to YY.
			idx, _ := strconv.Atoi(m[2])
			resolved, err := resolveArrayIndirection(script, name, idx)
			if err != nil {
				return "", err
			}
			return resolved, nil
		}
		return name, nil
	}

	if m, _ := throttleBodyProbe.FindStringMatch(script); m != nil {
		return m.GroupByNumber(1).String(), nil
	}
	return "", analysisErr(ErrEntryFunctionNotFound, "throttle call site")
}

func resolveArrayIndirection(script, arrayName string, idx int) (string, error) {
	re := regexp.MustCompile(`(?:var|let|const)\s+` + regexp.QuoteMeta(arrayName) + `\s*=\s*\[([^\]]*)\]`)
	m := re.FindStringSubmatch(script)
	if len(m) < 2 {
		return "", &AnalysisError{
			Kind: ErrEntryFunctionNotFound,
			Step: "throttle indirection",
			Err:  fmt.Errorf("array %q not declared", arrayName),
		}
	}
	elems := strings.Split(m[1], ",")
	if idx < 0 || idx >= len(elems) {
		return "", &AnalysisError{
			Kind: ErrEntryFunctionNotFound,
			Step: "throttle indirection",
			Err:  fmt.Errorf("index %d out of range in %q", idx, arrayName),
		}
	}
	return strings.TrimSpace(elems[idx]), nil
}
