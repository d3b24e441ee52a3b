package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/rs/cors"
)

// DefaultFrontendURL is the allowed origin when FRONTEND_URL is unset
const DefaultFrontendURL = "http://localhost:3000"

// CORS allows credentialed requests from the given origins
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "Cache-Control", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           3600,
	})
	return c.Handler
}

// CORSFromEnv builds CORS from FRONTEND_URL, a comma-separated origin list
func CORSFromEnv() func(http.Handler) http.Handler {
	return CORS(ParseOrigins(os.Getenv("FRONTEND_URL")))
}

// ParseOrigins splits a comma-separated origin list, dropping blanks and trailing slashes
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{DefaultFrontendURL}
	}
	return origins
}
