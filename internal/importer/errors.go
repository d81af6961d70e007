package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a client-facing failure. Details holds one
// human-readable message per problem found, in discovery order.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "Validation failed"
	}
	return strings.Join(e.Details, "; ")
}

// Invalid returns a ValidationError with a single formatted detail.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Details: []string{fmt.Sprintf(format, args...)}}
}

// AsValidationError unwraps err into a ValidationError, if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
