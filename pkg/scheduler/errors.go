package scheduler

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned by ExecuteJob when the id is unknown.
// CRUD reads stay soft (nil/false); ExecuteJob must return an
// execution id, so absence needs an error here.
var ErrJobNotFound = errors.New("job not found")

// ValidationError reports a malformed job input or patch. It is the
// only synchronous failure surface of the facade; everything in the
// dispatch path is recorded as execution data instead.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
