// Package simerr defines the typed error taxonomy used across the engine.
//
// Recoverable conditions (bad netlists, singular matrices, parse failures)
// are returned as errors implementing Kind(). Programmer-error conditions
// (a stamp outside an element's allocated rows) are not represented here;
// they panic via github.com/cpmech/gosl/chk at the call site.
package simerr

import "fmt"

// Kind tags an error with the taxonomy class from spec §7.
type Kind int

const (
	KindTopology Kind = iota
	KindAnalysis
	KindMatrix
	KindNonConvergence
	KindParse
	KindRuntimeExpr
)

func (k Kind) String() string {
	switch k {
	case KindTopology:
		return "TopologyError"
	case KindAnalysis:
		return "AnalysisError"
	case KindMatrix:
		return "MatrixError"
	case KindNonConvergence:
		return "NonConvergenceWarning"
	case KindParse:
		return "ParseError"
	case KindRuntimeExpr:
		return "RuntimeExpressionError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete type returned for every recoverable failure.
type Error struct {
	kind    Kind
	Reason  string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.Reason)
}

func (e *Error) Kind() Kind   { return e.kind }
func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an Error of the given kind with a formatted reason.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/reason to an existing error without discarding it.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, Reason: fmt.Sprintf(format, args...), Wrapped: err}
}

// Topology, Analysis, Matrix, Parse are convenience constructors mirroring
// the taxonomy in spec §7.
func Topology(format string, args ...interface{}) *Error { return New(KindTopology, format, args...) }
func Analysis(format string, args ...interface{}) *Error { return New(KindAnalysis, format, args...) }
func Matrix(format string, args ...interface{}) *Error   { return New(KindMatrix, format, args...) }
func Parse(format string, args ...interface{}) *Error    { return New(KindParse, format, args...) }

// NonConvergence reports a subiteration-cap overrun. Unlike the other
// constructors here, callers treat this kind as a warning attached to a
// still-valid frame, not a reason to halt (spec §7 error taxonomy).
func NonConvergence(format string, args ...interface{}) *Error {
	return New(KindNonConvergence, format, args...)
}
