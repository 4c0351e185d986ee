// Package errors provides standardized error types for the pushdown engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for caller contract violations and collaborator failures.
// Untranslatable constructs are never errors; they degrade to partial pushdown.
const (
	CodeInvalidPlan      = "INVALID_PLAN"
	CodeUnboundColumn    = "UNBOUND_COLUMN"
	CodeAliasConflict    = "ALIAS_CONFLICT"
	CodeUnknownDialect   = "UNKNOWN_DIALECT"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// PlanError represents a pushdown error with code, message, and optional details.
type PlanError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PlanError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PlanError) Is(target error) bool {
	t, ok := target.(*PlanError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *PlanError) WithDetail(key string, value interface{}) *PlanError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrEmptyPlan      = &PlanError{Code: CodeInvalidPlan, Message: "plan is empty"}
	ErrUnboundColumn  = &PlanError{Code: CodeUnboundColumn, Message: "column not visible in any child schema"}
	ErrAliasConflict  = &PlanError{Code: CodeAliasConflict, Message: "unresolvable alias collision"}
	ErrUnknownDialect = &PlanError{Code: CodeUnknownDialect, Message: "unknown dialect"}
)

// New creates a new PlanError with the given code and message.
func New(code, message string) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new PlanError with a formatted message.
func Newf(code, format string, args ...interface{}) *PlanError {
	return &PlanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a PlanError.
func Wrap(err error, code, message string) *PlanError {
	if err == nil {
		return nil
	}
	return &PlanError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *PlanError {
	if err == nil {
		return nil
	}
	return &PlanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsContractViolation reports whether err is an upstream planner contract
// violation (as opposed to a collaborator failure).
func IsContractViolation(err error) bool {
	switch GetCode(err) {
	case CodeInvalidPlan, CodeUnboundColumn, CodeAliasConflict:
		return true
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var planErr *PlanError
	if errors.As(err, &planErr) {
		return planErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var planErr *PlanError
	if errors.As(err, &planErr) {
		return planErr.Message
	}
	return err.Error()
}
