package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		mode       string
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			checks:     map[string]Pinger{"database": down},
			wantStatus: http.StatusOK,
		},
		{
			name:       "extended all healthy",
			checks:     map[string]Pinger{"database": healthy, "redis": healthy, "rabbitmq": nil},
			mode:       "extended",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "extended with failure",
			checks:     map[string]Pinger{"database": healthy, "redis": down},
			mode:       "extended",
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "healthy", "redis": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(tt.checks)
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest("GET", "/healthz?mode="+tt.mode, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("Expected %d checks, got %v", len(tt.wantChecks), resp.Checks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("Expected check[%s] = %s, got %s", k, v, resp.Checks[k])
				}
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	VersionHandler(VersionInfo{Version: "1.2.3", Commit: "abc123"})(w, httptest.NewRequest("GET", "/version", nil))

	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	if data["version"] != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %v", data["version"])
	}
}
