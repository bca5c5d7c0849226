package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/slatehq/slate-server/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestError_ErrorWithCause(t *testing.T) {
	assert.Equal(t, "collection not found", store.ErrCollectionNotFound.Error())

	err := store.ErrCollectionNotFound.WithCause(errors.New("key not found"))
	assert.Equal(t, "collection not found: key not found", err.Error())
}

func TestError_WithCauseKeepsIdentity(t *testing.T) {
	cause := errors.New("badger: conflict")
	err := store.ErrSlugTaken.WithCause(cause)

	assert.Equal(t, http.StatusConflict, err.HTTPCode())
	assert.Same(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, store.ErrSlugTaken)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, store.ErrAlreadyExists)

	wrapped := fmt.Errorf("create: %w", err)
	assert.ErrorIs(t, wrapped, store.ErrSlugTaken)
}

func TestError_IsIgnoresOtherTypes(t *testing.T) {
	assert.False(t, store.ErrNotFound.Is(errors.New("resource not found")))
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      *store.Error
		wantCode int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"already exists", store.ErrAlreadyExists, http.StatusConflict},
		{"collection not found", store.ErrCollectionNotFound, http.StatusNotFound},
		{"file not found", store.ErrFileNotFound, http.StatusNotFound},
		{"slug taken", store.ErrSlugTaken, http.StatusConflict},
		{"owner mismatch", store.ErrOwnerMismatch, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.HTTPCode())
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}
