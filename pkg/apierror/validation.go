package apierror

import (
	"errors"
	"fmt"
	"strings"
)

// Issue describes a single field that failed validation
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a schema validation failure carrying one or more issues
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends an issue and returns the error for chaining
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Issues = append(e.Issues, Issue{Field: field, Message: message})
	return e
}

// OrNil returns nil when no issues were recorded
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Invalid creates a validation error with a single issue
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Field: field, Message: message}}}
}

// AsValidation returns the *ValidationError in err's chain
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
