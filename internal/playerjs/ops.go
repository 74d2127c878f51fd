package playerjs

import "fmt"

// OpKind identifies one of the primitive transform operations the player
// script composes into its scramble functions. The set is closed on purpose:
// anything outside it fails classification with ErrUnrecognizedOperation
// instead of being approximated.
type OpKind int

const (
	// OpReverse reverses the character sequence in place.
	OpReverse OpKind = iota
	// OpSwap exchanges element 0 with the element at Arg.
	OpSwap
	// OpSwapMod exchanges element 0 with the element at Arg modulo length.
	OpSwapMod
	// OpSplice removes the first Arg elements.
	OpSplice
	// OpRotate rotates the sequence right by Arg modulo length. Only seen
	// in throttle transforms.
	OpRotate
)

func (k OpKind) String() string {
	switch k {
	case OpReverse:
		return "reverse"
	case OpSwap:
		return "swap"
	case OpSwapMod:
		return "swapMod"
	case OpSplice:
		return "splice"
	case OpRotate:
		return "rotate"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one primitive operation with its literal argument. Arg is unused for
// OpReverse.
type Op struct {
	Kind OpKind
	Arg  int
}

func (o Op) String() string {
	if o.Kind == OpReverse {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", o.Kind, o.Arg)
}

// OperationSet is the compiled signature transform: the entry function name
// found in the player script plus its operations in program order. Values
// are immutable after analysis and safe for concurrent use.
type OperationSet struct {
	Entry string
	Ops   []Op
}

// Apply runs the operation sequence over input and returns the transformed
// string. It is deterministic and keeps no state between calls. An argument
// that is invalid for the input length reports ErrUnrecognizedOperation,
// since argument validity cannot be checked at extraction time.
func (s *OperationSet) Apply(input string) (string, error) {
	return applyOps(s.Ops, input)
}

// ThrottleOperationSet is the compiled transform for the throttling ("n")
// parameter. It is derived independently of the signature transform and may
// use the numeric primitives absent from the signature vocabulary.
type ThrottleOperationSet struct {
	Entry string
	Ops   []Op
}

// Apply runs the throttle operation sequence over input.
func (s *ThrottleOperationSet) Apply(input string) (string, error) {
	return applyOps(s.Ops, input)
}

func applyOps(ops []Op, input string) (string, error) {
	bs := []byte(input)
	for i, op := range ops {
		var err error
		bs, err = applyOp(op, bs)
		if err != nil {
			return "", &AnalysisError{
				Kind: ErrUnrecognizedOperation,
				Step: fmt.Sprintf("apply op %d (%s)", i, op),
				Err:  err,
			}
		}
	}
	return string(bs), nil
}

func applyOp(op Op, bs []byte) ([]byte, error) {
	switch op.Kind {
	case OpReverse:
		for l, r := 0, len(bs)-1; l < r; l, r = l+1, r-1 {
			bs[l], bs[r] = bs[r], bs[l]
		}
		return bs, nil
	case OpSwap:
		if op.Arg < 0 || op.Arg >= len(bs) {
			return nil, fmt.Errorf("swap index %d out of range for length %d", op.Arg, len(bs))
		}
		bs[0], bs[op.Arg] = bs[op.Arg], bs[0]
		return bs, nil
	case OpSwapMod:
		if len(bs) == 0 {
			return bs, nil
		}
		pos := op.Arg % len(bs)
		if pos < 0 {
			pos += len(bs)
		}
		bs[0], bs[pos] = bs[pos], bs[0]
		return bs, nil
	case OpSplice:
		if op.Arg < 0 || op.Arg > len(bs) {
			return nil, fmt.Errorf("splice count %d out of range for length %d", op.Arg, len(bs))
		}
		return bs[op.Arg:], nil
	case OpRotate:
		if len(bs) == 0 {
			return bs, nil
		}
		shift := op.Arg % len(bs)
		if shift < 0 {
			shift += len(bs)
		}
		if shift == 0 {
			return bs, nil
		}
		out := make([]byte, 0, len(bs))
		out = append(out, bs[len(bs)-shift:]...)
		out = append(out, bs[:len(bs)-shift]...)
		return out, nil
	}
	return nil, fmt.Errorf("unknown operation kind %d", int(op.Kind))
}
