package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{"json post", "POST", `{"question":"why?"}`, "application/json; charset=utf-8", http.StatusOK},
		{"missing type", "POST", `{}`, "", http.StatusBadRequest},
		{"form post", "PUT", "a=b", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"bodyless logout", "POST", "", "", http.StatusOK},
		{"get ignores header", "GET", "", "text/plain", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/v1/coach/ask", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(zap.NewNop())(okHandler()).ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/api/v1/coach/ask", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	MaxRequestSize(16, zap.NewNop())(okHandler()).ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/coach/ask", strings.NewReader("{}"))
	w = httptest.NewRecorder()
	MaxRequestSize(16, zap.NewNop())(okHandler()).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestTimeout_SkipsStreams(t *testing.T) {
	t.Parallel()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	mw := Timeout(10*time.Millisecond, "/api/v1/realtime/")

	w := httptest.NewRecorder()
	mw(slow).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/sessions/user/active", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for slow handler, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	mw(slow).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/realtime/sessions/abc", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected stream route to bypass timeout, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	SecurityHeaders(true)(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("Expected X-Frame-Options DENY, got %q", got)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Expected no HSTS over plain HTTP, got %q", got)
	}
}

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []string
	}{
		{"", []string{DefaultFrontendURL}},
		{" , ", []string{DefaultFrontendURL}},
		{"https://app.cookmate.dev/", []string{"https://app.cookmate.dev"}},
		{"https://a.dev, http://localhost:19006", []string{"https://a.dev", "http://localhost:19006"}},
	}
	for _, tt := range tests {
		if got := ParseOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := CORS([]string{"https://app.cookmate.dev"})(okHandler())

	req := httptest.NewRequest("OPTIONS", "/api/v1/sessions/start", nil)
	req.Header.Set("Origin", "https://app.cookmate.dev")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.cookmate.dev" {
		t.Errorf("Expected allowed origin echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials allowed, got %q", got)
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/user/active", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for unknown origin, got %q", got)
	}
}
