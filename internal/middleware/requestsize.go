package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// DefaultMaxRequestSize caps request bodies at 1 MiB
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize caps request bodies at limit bytes, DefaultMaxRequestSize when limit is not positive.
// A declared Content-Length over the cap gets a 413 before the handler runs. Chunked
// bodies are cut off by http.MaxBytesReader and surface as a decode error in the handler.
func MaxRequestSize(limit int64, logger *zap.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				logger.Debug("request_body_too_large",
					zap.Int64("content_length", r.ContentLength),
					zap.Int64("limit", limit),
				)
				writeError(w, r, http.StatusRequestEntityTooLarge, "Request body exceeds the size limit", logger)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
