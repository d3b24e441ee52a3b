package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/benvon/cookmate/internal/logger"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error the middleware chain answers itself.
// It matches the envelope the handlers use, plus the request path.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// ErrorHandler turns a handler panic into a 500. The panic value and stack
// go to the log only; http.ErrAbortHandler is re-raised for net/http.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic_recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.Stack("stack"),
				)
				writeError(w, r, http.StatusInternalServerError, "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeError answers with an ErrorResponse whose error field is the status text
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	body := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      logpkg.SanitizePath(r.URL.Path),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Int("status_code", status),
			zap.String("path", body.Path),
			zap.Error(err),
		)
	}
}
