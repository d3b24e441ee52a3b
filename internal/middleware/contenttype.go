package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ContentType requires application/json on requests that carry a body.
// Bodyless POSTs such as logout pass through.
func ContentType(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasBody(r) {
				contentType := strings.ToLower(r.Header.Get("Content-Type"))
				if contentType == "" {
					writeError(w, r, http.StatusBadRequest, "Content-Type header is required", logger)
					return
				}
				if !strings.HasPrefix(contentType, "application/json") {
					writeError(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json", logger)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	// -1 means unknown length, e.g. chunked
	return r.ContentLength != 0
}
