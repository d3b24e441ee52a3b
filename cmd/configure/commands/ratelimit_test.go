package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/benvon/cookmate/internal/models"
)

type memRatelimitStore struct {
	configs map[string]string
	listErr error
}

func (m *memRatelimitStore) List(context.Context) ([]*models.RatelimitConfig, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.RatelimitConfig
	for k, v := range m.configs {
		out = append(out, &models.RatelimitConfig{ConfigKey: k, Rate: v})
	}
	return out, nil
}

func (m *memRatelimitStore) Set(_ context.Context, c *models.RatelimitConfig) error {
	if m.configs == nil {
		m.configs = map[string]string{}
	}
	m.configs[c.ConfigKey] = c.Rate
	return nil
}

func TestListRatelimits(t *testing.T) {
	t.Parallel()

	store := &memRatelimitStore{configs: map[string]string{models.RatelimitScopeCoach: "60-M"}}
	var out bytes.Buffer
	if err := listRatelimits(context.Background(), &out, store); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"coach    60-M", "default  5-S (built-in default)", "auth     10-M (built-in default)"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}

	store.listErr = errors.New("db down")
	if err := listRatelimits(context.Background(), &out, store); err == nil {
		t.Error("Expected list error to propagate")
	}
}

func TestSetRatelimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		scope       string
		rate        string
		expectError bool
	}{
		{name: "valid default", scope: "default", rate: "100-M"},
		{name: "valid with spaces", scope: " coach ", rate: " 20-H "},
		{name: "missing rate", scope: "auth", rate: "", expectError: true},
		{name: "unknown scope", scope: "admin", rate: "5-S", expectError: true},
		{name: "malformed rate", scope: "auth", rate: "fast", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &memRatelimitStore{}
			var out bytes.Buffer
			err := setRatelimit(context.Background(), &out, store, tt.scope, tt.rate)
			if (err != nil) != tt.expectError {
				t.Fatalf("Expected error=%v, got %v", tt.expectError, err)
			}
			if tt.expectError {
				if len(store.configs) != 0 {
					t.Error("Expected nothing to be stored on error")
				}
				return
			}
			scope := strings.TrimSpace(tt.scope)
			if store.configs[scope] != strings.TrimSpace(tt.rate) {
				t.Errorf("Expected %s stored for %s, got %v", tt.rate, scope, store.configs)
			}
		})
	}
}
