package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeInvalidRange,
				Message: "end must be after start",
			},
			wantMessage: "[INVALID_RANGE] end must be after start",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypePersistence,
				Message: "failed to write panel",
				Cause:   errors.New("disk full"),
			},
			wantMessage: "[PERSISTENCE] failed to write panel: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSourceError("failed to read prices", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewPersistenceError("rename failed", nil).
		WithContext("path", "data/processed/main_panel.parquet").
		WithContext("attempt", 1)

	require.Len(t, err.Context, 2)
	assert.Equal(t, "data/processed/main_panel.parquet", err.Context["path"])
	assert.Equal(t, 1, err.Context["attempt"])

	bare := &AppError{Type: ErrTypeConfig}
	bare.WithContext("key", "value")
	assert.Equal(t, "value", bare.Context["key"])
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		typ  ErrorType
		want bool
	}{
		{"direct match", NewInvalidRangeError("bad range"), ErrTypeInvalidRange, true},
		{"wrapped match", fmt.Errorf("build: %w", NewSourceError("read", nil)), ErrTypeSource, true},
		{"different type", NewParsingError("bad cell", nil), ErrTypeConfig, false},
		{"plain error", errors.New("boom"), ErrTypeParsing, false},
		{"nil error", nil, ErrTypeParsing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.typ))
		})
	}
}

func TestHelperConstructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name string
		err  *AppError
		typ  ErrorType
	}{
		{"invalid range", NewInvalidRangeError("x"), ErrTypeInvalidRange},
		{"source", NewSourceError("x", cause), ErrTypeSource},
		{"parsing", NewParsingError("x", cause), ErrTypeParsing},
		{"persistence", NewPersistenceError("x", cause), ErrTypePersistence},
		{"validation", NewValidationError("x", cause), ErrTypeValidation},
		{"config", NewConfigError("x", cause), ErrTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, "x", tt.err.Message)
			assert.NotNil(t, tt.err.Context)
		})
	}
}
