package webhook

import (
	"errors"
	"fmt"
)

// ValidationError rejects an event before any side effect (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNoCallData is returned for payloads without a call record.
var ErrNoCallData = &ValidationError{Message: "No call data"}

// ParameterError is a function-call parameter that has the wrong shape.
type ParameterError struct {
	Function string
	Field    string
	Reason   string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: invalid parameter %q: %s", e.Function, e.Field, e.Reason)
}

// UpstreamError wraps a failed CRM operation.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("crm %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsValidation reports whether err should be answered with 400.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
