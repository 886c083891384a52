package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vantutran2k1/elements/pkg/queryparser"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrBadValue     = errors.New("bad value")
)

type UnknownFieldError struct {
	Entity string
	Field  string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q for %s", e.Field, e.Entity)
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// ValueError reports a raw value that cannot be used with a field, either
// because it does not parse as the field's type or because the operator does
// not accept it.
type ValueError struct {
	Field    string
	Value    string
	Expected Type
	Operator queryparser.Operator
	Err      error
}

func (e *ValueError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bad value %q for field %q", e.Value, e.Field)
	if e.Operator != "" {
		fmt.Fprintf(&b, " with operator %q", e.Operator)
	} else {
		fmt.Fprintf(&b, ", expected %s", e.Expected)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValueError) Unwrap() error { return e.Err }

func (e *ValueError) Is(target error) bool { return target == ErrBadValue }

// IsInvalid reports whether err was caused by an untrusted query rather than
// by the backend.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrBadValue) ||
		errors.Is(err, queryparser.ErrSyntax) ||
		errors.Is(err, queryparser.ErrAmbiguous)
}
