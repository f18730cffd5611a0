package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		wantCode  int
		notFound  bool
		transient bool
	}{
		{
			name:     "not found",
			err:      NewNotFoundError("resource", "r-1"),
			wantType: ErrorTypeNotFound,
			wantCode: http.StatusNotFound,
			notFound: true,
		},
		{
			name:      "transient failure",
			err:       NewTransientFailure("link", 3, errors.New("conflict")),
			wantType:  ErrorTypeTransient,
			wantCode:  http.StatusServiceUnavailable,
			transient: true,
		},
		{
			name:     "validation",
			err:      NewValidationError("bad link type"),
			wantType: ErrorTypeValidation,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("link failed: %w", NewNotFoundError("content", "c-1")),
			wantType: ErrorTypeNotFound,
			wantCode: http.StatusNotFound,
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsType(tt.err, tt.wantType))
			assert.Equal(t, tt.wantCode, HTTPStatusOf(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("condition failed")
	err := NewTransientFailure("createVersion", 5, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "createVersion")
	assert.Equal(t, 5, err.Details["attempts"])
}

func TestHTTPStatusOfPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(errors.New("boom")))
}
