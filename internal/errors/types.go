// Package errors defines the structured error types used across sitepipe.
//
// Every failure that leaves a stage is a *SitepipeError carrying the stage
// name, so callers several composition levels up can still tell which stage
// broke. The underlying cause (tool diagnostics, *fs.PathError, ...) stays
// reachable through Unwrap.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeStage      ErrorType = "stage"
	ErrorTypeLint       ErrorType = "lint"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// SitepipeError is a structured error type with context.
type SitepipeError struct {
	Type     ErrorType
	Code     string
	Stage    string
	FilePath string
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *SitepipeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SitepipeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SitepipeError) Is(target error) bool {
	var t *SitepipeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SitepipeError) WithContext(key string, value interface{}) *SitepipeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error refers to.
func (e *SitepipeError) WithFile(path string) *SitepipeError {
	e.FilePath = path

	return e
}

// NewStageError creates a stage transformation error.
func NewStageError(stage, message string, cause error) *SitepipeError {
	return &SitepipeError{
		Type:    ErrorTypeStage,
		Code:    ErrCodeStageFailed,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// NewLintError creates a lint violation error. Lint violations fail the run.
func NewLintError(stage, diagnostics string, cause error) *SitepipeError {
	err := &SitepipeError{
		Type:    ErrorTypeLint,
		Code:    ErrCodeLintViolation,
		Stage:   stage,
		Message: "lint violations found",
		Cause:   cause,
	}
	if diagnostics != "" {
		err.WithContext("diagnostics", diagnostics)
	}

	return err
}

// NewIOError creates an I/O error; the cause is kept unchanged.
func NewIOError(stage, path string, cause error) *SitepipeError {
	return &SitepipeError{
		Type:     ErrorTypeIO,
		Code:     ErrCodeIO,
		Stage:    stage,
		FilePath: path,
		Cause:    cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SitepipeError {
	return &SitepipeError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SitepipeError {
	return &SitepipeError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SitepipeError {
	return &SitepipeError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsLintError checks if an error is a lint violation.
func IsLintError(err error) bool {
	var se *SitepipeError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeLint
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var se *SitepipeError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeConfig
	}

	return false
}

// StageOf returns the name of the stage that produced err, or "" when the
// error did not originate in a stage.
func StageOf(err error) string {
	var se *SitepipeError
	if errors.As(err, &se) {
		return se.Stage
	}

	return ""
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error according to its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SitepipeError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred", fields...)
		return
	}

	fields = append(fields, "type", se.Type, "code", se.Code, "stage", se.Stage)
	switch se.Type {
	case ErrorTypeLint:
		h.logger.Warn(ctx, err, "Lint failed", fields...)
	case ErrorTypeStage, ErrorTypeIO:
		h.logger.Error(ctx, err, "Stage failed", fields...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}

// Common error codes.
const (
	ErrCodeStageFailed   = "ERR_STAGE_FAILED"
	ErrCodeLintViolation = "ERR_LINT_VIOLATION"
	ErrCodeIO            = "ERR_IO"
	ErrCodeConfigInvalid = "ERR_CONFIG_INVALID"
	ErrCodeInvalidPath   = "ERR_INVALID_PATH"
	ErrCodeOutputOverlap = "ERR_OUTPUT_OVERLAP"
	ErrCodeUnknownNode   = "ERR_UNKNOWN_NODE"
	ErrCodeInternal      = "ERR_INTERNAL"
)
