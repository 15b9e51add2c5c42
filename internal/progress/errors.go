package progress

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel for rejected completion input. Validation
// failures are fatal to the calling operation and propagate unmasked: a
// rejected write triggers no streak update, invalidation, or job.
var ErrValidation = errors.New("validation failed")

// ValidationError describes which field of a completion was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrValidation) hold for all validation errors
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
