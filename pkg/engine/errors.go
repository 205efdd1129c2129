package engine

import "fmt"

// Code classifies environment failures into stable categories callers
// can branch on without string matching.
type Code string

const (
	CodeUnknown          Code = "unknown"
	CodeDaemonUnreachable Code = "daemon_unreachable"
	CodeImageNotFound    Code = "image_not_found"
	CodeNotFound         Code = "not_found"
	CodeNameConflict     Code = "name_conflict"
	CodePermissionDenied Code = "permission_denied"
)

// EnvironmentError carries a Code plus the underlying runtime error.
type EnvironmentError struct {
	Code Code
	Op   string // the driver operation that failed
	err  error
}

func (e *EnvironmentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.err)
}

func (e *EnvironmentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// newError wraps a runtime error with a code. Nil passes through.
func newError(op string, code Code, err error) error {
	if err == nil {
		return nil
	}
	return &EnvironmentError{Code: code, Op: op, err: err}
}

// IsCode reports whether err is an EnvironmentError with the given code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*EnvironmentError); ok {
		return e.Code == code
	}
	return false
}
