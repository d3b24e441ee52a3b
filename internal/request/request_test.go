package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"first forwarded hop", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.2 "}, "", "203.0.113.7"},
		{"real ip header", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "", "198.51.100.4"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, "", "203.0.113.7"},
		{"remote host without port", nil, "10.0.0.1:52100", "10.0.0.1"},
		{"ipv6 remote host", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "10.0.0.9", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/api/v1/sessions", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAccessToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		authz     string
		cookie    string
		wantToken string
		wantOK    bool
	}{
		{"bearer header", "Bearer abc.def.ghi", "", "abc.def.ghi", true},
		{"scheme is case-insensitive", "bearer abc", "", "abc", true},
		{"cookie when no header", "", "cookie-token", "cookie-token", true},
		{"header wins over cookie", "Bearer header-token", "cookie-token", "header-token", true},
		{"malformed header does not fall back to cookie", "Basic dXNlcjpwYXNz", "cookie-token", "", false},
		{"empty bearer value", "Bearer ", "", "", false},
		{"no credentials", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/api/v1/realtime/sessions", nil)
			if tt.authz != "" {
				r.Header.Set("Authorization", tt.authz)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			token, ok := AccessToken(r)
			if token != tt.wantToken || ok != tt.wantOK {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.wantToken, tt.wantOK, token, ok)
			}
		})
	}
}

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	cook := &models.User{ID: uuid.New(), Email: "cook@example.com"}

	tests := []struct {
		name string
		ctx  context.Context
		want *models.User
	}{
		{"user attached", WithUser(context.Background(), cook), cook},
		{"nothing attached", context.Background(), nil},
		{"wrong value type", context.WithValue(context.Background(), UserContextKey(), "not a user"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil).WithContext(tt.ctx)
			if got := UserFromContext(r); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
