package engine

import (
	"errors"
	"fmt"
)

// Kind is the coarse outcome category callers branch on.
// Error text is not a stable contract; the kind is.
type Kind int

const (
	KindFailure    Kind = iota // opaque: transport or upstream parse breakage
	KindValidation             // malformed input, rejected before any network call
	KindNotFound               // explicit no-content, missing data, out-of-range index
	KindRestricted             // restricted or banned account
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindRestricted:
		return "restricted"
	default:
		return "failure"
	}
}

// ErrExtraction reports a missing script block or malformed embedded JSON.
var ErrExtraction = errors.New("extraction failed")

// Error is a kind-tagged error. Msg is the user-visible text; Err, when set,
// is the internal cause and is never rendered by Error().
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a kind-tagged error with a formatted user-visible message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err. Untagged errors are failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFailure
}
