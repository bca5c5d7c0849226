package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// OwnerHeader carries the caller's owner id, set by the authenticating
// gateway in front of this service.
const OwnerHeader = "X-Owner-ID"

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// ownerIDKey is the context key for the calling owner.
const ownerIDKey ctxKey = "ownerID"

// GetOwnerID returns the calling owner from context.
// Returns 401 error if no owner was supplied.
func GetOwnerID(ctx context.Context) (string, error) {
	ownerID, ok := ctx.Value(ownerIDKey).(string)
	if !ok || ownerID == "" {
		return "", huma.Error401Unauthorized(OwnerHeader + " header required")
	}
	return ownerID, nil
}

func setOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// ownerMiddleware copies OwnerHeader into the request context. Requests
// without it continue; handlers that need an owner call GetOwnerID.
func ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if ownerID == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(setOwnerID(r.Context(), ownerID)))
	})
}
