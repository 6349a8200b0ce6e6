// Package vmerr defines the closed set of error kinds a NeoVM or
// application-engine execution can FAULT with (spec.md §7). Every kind
// is mutually exclusive; an *Error always carries exactly one.
package vmerr

import "fmt"

// Kind is a closed enumeration of FAULT causes.
type Kind int

const (
	StackUnderflow Kind = iota
	TypeMismatch
	InvalidArgument
	Overflow
	DivideByZero
	OutOfRange
	OutOfGas
	LimitExceeded
	InvalidOpcode
	BadScriptHash
	PermissionDenied
	ContractNotFound
	MethodNotFound
	InactiveMethod
	Uncaught
)

func (k Kind) String() string {
	switch k {
	case StackUnderflow:
		return "StackUnderflow"
	case TypeMismatch:
		return "TypeMismatch"
	case InvalidArgument:
		return "InvalidArgument"
	case Overflow:
		return "Overflow"
	case DivideByZero:
		return "DivideByZero"
	case OutOfRange:
		return "OutOfRange"
	case OutOfGas:
		return "OutOfGas"
	case LimitExceeded:
		return "LimitExceeded"
	case InvalidOpcode:
		return "InvalidOpcode"
	case BadScriptHash:
		return "BadScriptHash"
	case PermissionDenied:
		return "PermissionDenied"
	case ContractNotFound:
		return "ContractNotFound"
	case MethodNotFound:
		return "MethodNotFound"
	case InactiveMethod:
		return "InactiveMethod"
	case Uncaught:
		return "Uncaught"
	default:
		return "Unknown"
	}
}

// Error is a FAULT cause: every VM-level or application-engine failure
// surfaces as one of these rather than an ad-hoc error string, so
// callers (and the t8n receipt format) can report a stable kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a vmerr.Error of the given kind, so callers
// can branch with errors.Is semantics-like convenience without importing
// the stdlib errors package at every call site.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
