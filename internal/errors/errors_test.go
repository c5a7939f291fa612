package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with wrapped error",
			appError: &AppError{
				Type:    ErrorTypeInput,
				Message: "failed to read input",
				Err:     errors.New("file not found"),
			},
			expected: "input: failed to read input: file not found",
		},
		{
			name: "error without wrapped error",
			appError: &AppError{
				Type:    ErrorTypeSchema,
				Message: "column set is frozen",
				Err:     nil,
			},
			expected: "schema: column set is frozen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	appErr := NewOutputError("test message", wrappedErr)

	assert.Equal(t, wrappedErr, appErr.Unwrap())
	assert.ErrorIs(t, appErr, wrappedErr)
}

func TestAppError_Is(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		target   error
		expected bool
	}{
		{
			name:     "same type",
			appError: NewTokenizerError("test message", nil),
			target:   NewTokenizerError("different message", errors.New("some error")),
			expected: true,
		},
		{
			name:     "different type",
			appError: NewInputError("test message", nil),
			target:   NewParsingError("test message", nil),
			expected: false,
		},
		{
			name:     "not an AppError",
			appError: NewInputError("test message", nil),
			target:   errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Is(tt.target))
		})
	}
}

func TestRecordError(t *testing.T) {
	err := &RecordError{Source: "data/a.jsonl", Line: 3, Index: 2, Err: NewParsingError("top-level value is an array", ErrNotObject)}

	assert.Equal(t, "data/a.jsonl: line 3 (value 2): parsing: top-level value is an array: value is not a JSON object", err.Error())
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.ErrorIs(t, err, ErrNotObject)
	assert.NotErrorIs(t, err, ErrInvalidJSON)
	assert.ErrorIs(t, fmt.Errorf("pass 1: %w", err), ErrMalformedRecord)
	assert.True(t, IsRecordError(err))
	assert.True(t, IsRecordError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsRecordError(ErrMalformedRecord))
	assert.False(t, IsRecordError(NewTokenizerError("desync", ErrTokenizerDesync)))
}

func TestIsAs(t *testing.T) {
	err := fmt.Errorf("pass 1: %w", NewTokenizerError("unterminated value starting at line 4", ErrTokenizerDesync))

	assert.True(t, Is(err, ErrTokenizerDesync))
	assert.False(t, Is(err, ErrTrailingData))

	var appErr *AppError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, "unterminated value starting at line 4", appErr.Message)
}

func TestUserFriendlyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "input error",
			err:      NewInputError("failed to read file", nil),
			expected: "Input error: failed to read file",
		},
		{
			name:     "parsing error",
			err:      NewParsingError("invalid JSON syntax", nil),
			expected: "JSON parsing error: invalid JSON syntax",
		},
		{
			name:     "tokenizer error",
			err:      NewTokenizerError("unterminated value in a.json", ErrTokenizerDesync),
			expected: "JSON stream error: unterminated value in a.json",
		},
		{
			name:     "schema error",
			err:      NewSchemaError("key \"x\" not in header", ErrSchemaMismatch),
			expected: "Schema error: key \"x\" not in header",
		},
		{
			name:     "config error",
			err:      NewConfigError("unknown mode", nil),
			expected: "Configuration error: unknown mode",
		},
		{
			name:     "output error",
			err:      NewOutputError("failed to write output", nil),
			expected: "Output error: failed to write output",
		},
		{
			name:     "wrapped app error",
			err:      fmt.Errorf("run: %w", NewInputError("missing", ErrFileNotFound)),
			expected: "Input error: missing",
		},
		{
			name:     "standard error - empty input",
			err:      ErrEmptyInput,
			expected: "Error: The input is empty. Please provide JSON data.",
		},
		{
			name:     "standard error - schema mismatch",
			err:      ErrSchemaMismatch,
			expected: "Error: A record produced a column outside the computed header.",
		},
		{
			name:     "unknown error",
			err:      errors.New("some unknown error"),
			expected: "Error: some unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UserFriendlyError(tt.err))
		})
	}
}
