package polls

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a poll (or the caller's vote) does not exist.
	ErrNotFound = errors.New("poll not found")
	// ErrForbidden is returned when a non-creator attempts an owner-only action
	// or a viewer has no access to the poll.
	ErrForbidden = errors.New("not allowed")
	// ErrInvalidState is returned when a lifecycle guard rejects a transition.
	// The engine performs zero mutation in that case.
	ErrInvalidState = errors.New("operation not allowed in current poll state")
)

// ValidationError reports malformed input: bad option counts, unknown option
// ids, out-of-bounds reopen windows.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
