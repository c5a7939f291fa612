package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput      = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrMalformedRecord = errors.New("malformed record")
	ErrNotObject       = errors.New("value is not a JSON object")
	ErrTokenizerDesync = errors.New("unterminated JSON fragment at end of stream")
	ErrTrailingData    = errors.New("unexpected data after top-level value")
	ErrSchemaMismatch  = errors.New("record key missing from frozen column list")
	ErrSchemaFrozen    = errors.New("column set is frozen")
	ErrFileNotFound    = errors.New("file not found")
	ErrNoInput         = errors.New("no input provided: please specify a file or directory with -i")
	ErrInvalidFilePath = errors.New("invalid file path")
	ErrNotRewindable   = errors.New("input cannot be read twice")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput     ErrorType = "input"
	ErrorTypeParsing   ErrorType = "parsing"
	ErrorTypeTokenizer ErrorType = "tokenizer"
	ErrorTypeSchema    ErrorType = "schema"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeOutput    ErrorType = "output"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to reading input
func NewInputError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInput, Message: message, Err: err}
}

// NewParsingError creates a new error related to JSON parsing
func NewParsingError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeParsing, Message: message, Err: err}
}

// NewTokenizerError creates a new error for a stream that cannot be split into values
func NewTokenizerError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeTokenizer, Message: message, Err: err}
}

// NewSchemaError creates a new error related to the column set
func NewSchemaError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeSchema, Message: message, Err: err}
}

// NewConfigError creates a new error related to configuration
func NewConfigError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeConfig, Message: message, Err: err}
}

// NewOutputError creates a new error related to writing output
func NewOutputError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeOutput, Message: message, Err: err}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// RecordError locates a single bad value inside an input. It matches
// ErrMalformedRecord and unwraps to the cause.
// Line is 1-based; Index is the 0-based position of the value in its input.
type RecordError struct {
	Source string
	Line   int
	Index  int
	Err    error
}

// Error implements error interface
func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: line %d (value %d): %v", e.Source, e.Line, e.Index, e.Err)
}

// Unwrap returns wrapped error
func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedRecord, whatever the underlying cause.
func (e *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// IsRecordError reports whether err only concerns a single record and can be skipped.
func IsRecordError(err error) bool {
	var recErr *RecordError
	return errors.As(err, &recErr)
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeTokenizer:
			return fmt.Sprintf("JSON stream error: %s", appErr.Message)
		case ErrorTypeSchema:
			return fmt.Sprintf("Schema error: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified input could not be found. Please check the path."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file or directory with -i."
	}
	if errors.Is(err, ErrSchemaMismatch) {
		return "Error: A record produced a column outside the computed header."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}

	return fmt.Sprintf("Error: %v", err)
}
