package middleware

import (
	"context"
	"net/http"

	"github.com/ovoronin/scribe/internal/handlers"
	"github.com/ovoronin/scribe/internal/handlers/render"
	"github.com/ovoronin/scribe/internal/models"
)

type authService interface {
	// Resolve the request to a user or fail
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

// AuthMiddleware is the authorization gate for protected handlers.
// Whatever went wrong with the token (missing, malformed, forged, expired,
// user deleted) the caller sees the same opaque unauthorized response,
// and the wrapped handler never runs
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := handlers.NewContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware resolves the user when a valid token is present but
// lets anonymous requests through. Used by read endpoints that show private
// content to its author only
func OptionalAuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Auth(r.Context(), r)
			if err == nil {
				r = r.WithContext(handlers.NewContextWithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
