package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/cookmate/internal/apperr"
	logpkg "github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/request"
	"go.uber.org/zap"
)

// Authenticator resolves an access token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth creates authentication middleware that accepts a bearer token or the jwt cookie
func Auth(authn Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := request.AccessToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Missing or malformed access token", logger)
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, apperr.ErrUnauthorized) {
					writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", logger)
					return
				}
				logger.Error("authentication_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				writeError(w, r, http.StatusInternalServerError, "Authentication unavailable", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}
