package element

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("element not found")
	ErrIntegrityViolation = errors.New("integrity violation")
)

// IntegrityError is returned for any write that would break a referential,
// uniqueness or structural invariant. Reason is safe to show to callers; Err
// keeps the underlying store error, if any, for logging.
type IntegrityError struct {
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	return "integrity violation: " + e.Reason
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrityViolation }

func integrity(format string, args ...any) error {
	return &IntegrityError{Reason: fmt.Sprintf(format, args...)}
}
