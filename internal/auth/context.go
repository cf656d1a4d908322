// Package auth carries the identity of the draft owner through request contexts.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/model"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

// ContextKeyUserID is the key for user ID in request context
const ContextKeyUserID ContextKey = "userID"

// ContextWithUserID returns a new context with the user ID set
func ContextWithUserID(ctx context.Context, userID model.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext extracts the user ID from context
func UserIDFromContext(ctx context.Context) (model.UserID, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(model.UserID)
	return userID, ok && userID != ""
}

// WithUserHeader stores the X-User-ID header in the request context.
// Identity is asserted by the fronting proxy; requests without it stay anonymous.
func WithUserHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(config.HUserID)); id != "" {
			r = r.WithContext(ContextWithUserID(r.Context(), model.UserID(id)))
		}
		next.ServeHTTP(w, r)
	})
}
