package orchestrator

import "errors"

// ValidationError rejects a submission before any run record is created.
// It is the only error a caller of Submit sees synchronously besides
// record-store failures.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Field + " " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}
