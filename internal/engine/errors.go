package engine

import (
	"errors"
	"fmt"
)

// ValidationError marks client-correctable input problems: empty titles,
// too-short search queries, unknown quadrant or status literals.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError marks uniqueness violations such as a taken email.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

// ErrInvalidCredentials is returned by Authenticate for a bad email/password
// pair. Deliberately indistinguishable between the two cases.
var ErrInvalidCredentials = errors.New("invalid email or password")
