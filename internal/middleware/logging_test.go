package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		withUser      bool
	}{
		{name: "GET request", method: "GET", path: "/healthz", handlerStatus: http.StatusOK},
		{name: "POST request", method: "POST", path: "/api/v1/sessions/start", handlerStatus: http.StatusCreated, withUser: true},
		{name: "404 request", method: "GET", path: "/notfound", handlerStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
				w.WriteHeader(http.StatusTeapot)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.withUser {
				req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
			}
			w := httptest.NewRecorder()
			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("Expected logged status %d, got %v", tt.handlerStatus, fields["status_code"])
			}
			if _, ok := fields["user_id"]; ok != tt.withUser {
				t.Errorf("Expected user_id present=%v, got %v", tt.withUser, fields)
			}
		})
	}
}

func TestLoggingResponseWriter_Flush(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Error("Expected wrapped writer to implement http.Flusher")
			return
		}
		_, _ = w.Write([]byte("data: hi\n\n"))
		f.Flush()
	})

	w := httptest.NewRecorder()
	Logging(zap.NewNop())(handler).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/realtime/sessions/x", nil))

	if !w.Flushed {
		t.Error("Expected recorder to be flushed")
	}
}
