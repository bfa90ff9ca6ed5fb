package transaction

import (
	"fmt"

	"github.com/BryanQuigley/systemd/pkg/txerr"
)

// ErrorKind is one of the structured diagnostics of spec.md §7.
type ErrorKind int

const (
	// ErrLoadFailed: unit's load state is error and the request is not Stop.
	ErrLoadFailed ErrorKind = iota
	// ErrMasked: unit is masked and the request is not Stop.
	ErrMasked
	// ErrJobTypeNotApplicable: unit class does not support this job type.
	// Suppressed by builder callers that recurse with "log & continue".
	ErrJobTypeNotApplicable
	// ErrJobsConflicting: two jobs on the same unit cannot merge and neither may be dropped.
	ErrJobsConflicting
	// ErrOrderIsCyclic: ordering cycle cannot be broken.
	ErrOrderIsCyclic
	// ErrIsDestructive: FAIL-mode apply would replace incompatible live jobs.
	ErrIsDestructive
	// ErrOutOfMemory: allocation failure; callers must treat as fatal. Not
	// produced by this Go implementation (the runtime's allocator failure
	// mode is a fatal panic, not a returned error) but kept in the taxonomy
	// for parity with spec.md §7.
	ErrOutOfMemory
)

func (k ErrorKind) String() string {
	switch k {
	case ErrLoadFailed:
		return "LOAD_FAILED"
	case ErrMasked:
		return "MASKED"
	case ErrJobTypeNotApplicable:
		return "JOB_TYPE_NOT_APPLICABLE"
	case ErrJobsConflicting:
		return "TRANSACTION_JOBS_CONFLICTING"
	case ErrOrderIsCyclic:
		return "TRANSACTION_ORDER_IS_CYCLIC"
	case ErrIsDestructive:
		return "TRANSACTION_IS_DESTRUCTIVE"
	case ErrOutOfMemory:
		return "OUT_OF_MEMORY"
	default:
		return "UNKNOWN"
	}
}

// Error is the structured diagnostic returned by the engine's request
// functions (spec.md §7). Its message is implementation-chosen; Kind is
// what callers should switch on.
type Error struct {
	Kind ErrorKind
	Unit string
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.Unit != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Unit)
	}
	return e.Kind.String()
}

// Unwrap exposes the underlying cause, if any, so errors.Is/errors.As and
// txerr.Is/txerr.As compose across this boundary.
func (e *Error) Unwrap() error { return e.err }

// NewError builds a bare *Error of the given kind against unit.
func NewError(kind ErrorKind, unit string) *Error {
	return &Error{Kind: kind, Unit: unit}
}

// Wrap builds an *Error of the given kind against unit, annotated with cause.
func Wrap(kind ErrorKind, unit string, cause error) *Error {
	return &Error{Kind: kind, Unit: unit, err: cause, msg: fmt.Sprintf("%s: %s: %v", kind, unit, cause)}
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, unit, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Unit: unit, msg: fmt.Sprintf("%s: %s: %s", kind, unit, fmt.Sprintf(format, args...))}
}

// Is reports whether err is a *Error of the given kind, anywhere in its chain.
func Is(err error, kind ErrorKind) bool {
	var te *Error
	if !txerr.As(err, &te) {
		return false
	}
	return te.Kind == kind
}
