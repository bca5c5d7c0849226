package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"present", "user-a", "user-a"},
		{"trimmed", "  user-a ", "user-a"},
		{"absent", "", ""},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var gotErr error
			h := ownerMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got, gotErr = GetOwnerID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(OwnerHeader, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
			if tt.want == "" {
				require.Error(t, gotErr)
			} else {
				require.NoError(t, gotErr)
			}
		})
	}
}

func TestGetOwnerID_Unauthorized(t *testing.T) {
	RegisterErrorHandler()

	_, err := GetOwnerID(context.Background())
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.GetStatus())
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:52311"
	assert.Equal(t, "10.0.0.7", clientIP(req))

	req.RemoteAddr = "10.0.0.7"
	assert.Equal(t, "10.0.0.7", clientIP(req))
}

func TestIsReadOnly(t *testing.T) {
	assert.True(t, isReadOnly(http.MethodGet))
	assert.True(t, isReadOnly(http.MethodOptions))
	assert.False(t, isReadOnly(http.MethodPatch))
	assert.False(t, isReadOnly(http.MethodDelete))
}
