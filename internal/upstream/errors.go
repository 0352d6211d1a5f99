package upstream

import (
	"errors"
	"fmt"
)

// AuthError is returned when the upstream rejects the credential. By the
// time the caller sees it the session has already been torn down; it is a
// terminal failure, not something to retry.
type AuthError struct {
	Operation string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream %s: unauthorized, session cleared", e.Operation)
}

// TransportError is a network or server-side failure. Read paths surface
// it to the screen as a retryable error; it is never retried automatically.
type TransportError struct {
	Operation string
	Status    int
	Err       error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("upstream %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataShapeError is raised at the decode boundary when a payload does not
// match the expected shape.
type DataShapeError struct {
	Operation string
	Err       error
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("upstream %s: unexpected payload: %v", e.Operation, e.Err)
}

func (e *DataShapeError) Unwrap() error { return e.Err }

// ValidationError is a client-side form input failure. It blocks
// submission and never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
