package queryparser

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax    = errors.New("invalid query syntax")
	ErrAmbiguous = errors.New("ambiguous query parameters")
)

// SyntaxError reports a malformed clause. Fragment is the clause text the
// parser stopped in.
type SyntaxError struct {
	Query    string
	Fragment string
	Offset   int
	Err      error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid query syntax near %q: %v", e.Fragment, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

type AmbiguousQueryError struct {
	Param string
	Count int
}

func (e *AmbiguousQueryError) Error() string {
	return fmt.Sprintf("query parameter %q given %d times, expected at most once", e.Param, e.Count)
}

func (e *AmbiguousQueryError) Is(target error) bool { return target == ErrAmbiguous }
