package frontend

import "fmt"

// Phase identifies which stage of translation an Error was raised from.
type Phase int

const (
	PhaseTranslate Phase = iota
	PhaseDispatch
	PhaseEnvironment
	PhaseMemRef
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseTranslate:
		return "translate"
	case PhaseDispatch:
		return "dispatch"
	case PhaseEnvironment:
		return "environment"
	case PhaseMemRef:
		return "memref"
	default:
		return "unknown"
	}
}

// Kind classifies an Error independent of the Phase it occurred in, so callers can branch
// on it with errors.Is/errors.As regardless of which phase raised it.
type Kind int

const (
	KindUnsupportedOperator Kind = iota
	KindInvalidOperator
	KindEnvironment
	KindMemRef
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindUnsupportedOperator:
		return "unsupported_operator"
	case KindInvalidOperator:
		return "invalid_operator"
	case KindEnvironment:
		return "environment"
	case KindMemRef:
		return "memref"
	default:
		return "unknown"
	}
}

// Error is a static translation-time failure: malformed or unsupported input to the
// translator, or a failure reported back from the Environment. It is never used for Wasm
// traps, which are lowered into the SSA IR as ExitCode instructions instead of surfaced here.
type Error struct {
	Phase   Phase
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Phase, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Phase, e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// newError constructs an Error, optionally wrapping cause (nil is fine).
func newError(phase Phase, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Phase: phase, Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
