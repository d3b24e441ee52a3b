package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	logpkg "github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/services/ai"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	respondErrorBody(w, status, map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   logpkg.SanitizeString(message, 200),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondValidationError sends a 400 listing every offending field
func respondValidationError(w http.ResponseWriter, ve *apperr.ValidationError) {
	respondErrorBody(w, http.StatusBadRequest, map[string]any{
		"success":   false,
		"error":     "Validation Error",
		"message":   "One or more fields are invalid",
		"fields":    ve.Fields,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func respondErrorBody(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps a service error onto its HTTP status.
// Anything unclassified is logged and reported as a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error) {
	var ve *apperr.ValidationError
	var upstream *ai.UpstreamProviderError
	switch {
	case errors.As(err, &ve):
		respondValidationError(w, ve)
	case errors.Is(err, apperr.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		respondJSONError(w, http.StatusForbidden, "Forbidden", "You do not have access to this resource")
	case errors.Is(err, apperr.ErrConflict):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.As(err, &upstream):
		logger.Warn("upstream_provider_error",
			zap.String("op", op),
			zap.String("provider", upstream.Provider),
			zap.String("error", logpkg.SanitizeError(upstream.Err)),
		)
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The coaching service is temporarily unavailable")
	default:
		logger.Error("request_failed",
			zap.String("op", op),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields and trailing data
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidationError("body", "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.NewValidationError("body", "request body is too large")
		}
		return apperr.NewValidationError("body", fmt.Sprintf("invalid JSON: %s", logpkg.SanitizeString(err.Error(), 120)))
	}
	if dec.More() {
		return apperr.NewValidationError("body", "request body must contain a single JSON object")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(r, dst)
	var ve *apperr.ValidationError
	if errors.As(err, &ve) && ve.Fields["body"] == "request body is required" {
		return nil
	}
	return err
}

// pathUUID parses a UUID route variable
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperr.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

// queryInt reads a positive integer query parameter, falling back to def when absent or malformed
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
