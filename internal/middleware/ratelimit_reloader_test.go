package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type memRatelimitRepo struct {
	mu     sync.Mutex
	rates  map[string]string
	getErr error
	sets   int
}

func (m *memRatelimitRepo) Get(_ context.Context, scope string) (*models.RatelimitConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rate, ok := m.rates[scope]
	if !ok {
		return nil, nil
	}
	return &models.RatelimitConfig{ConfigKey: scope, Rate: rate}, nil
}

func (m *memRatelimitRepo) Set(_ context.Context, c *models.RatelimitConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.rates[c.ConfigKey] = c.Rate
	return nil
}

func newTestReloader(t *testing.T, repo *memRatelimitRepo, scope string) *RateLimitReloader {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl, err := NewRateLimitReloader(client, repo, scope, "", zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("Failed to create reloader: %v", err)
	}
	return rl
}

func hit(h http.Handler, ip string) int {
	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitReloader_SeedsDefaultPerScope(t *testing.T) {
	t.Parallel()

	repo := &memRatelimitRepo{rates: map[string]string{}}
	rl := newTestReloader(t, repo, models.RatelimitScopeAuth)

	if repo.rates[models.RatelimitScopeAuth] != DefaultAuthRatelimitRate {
		t.Errorf("Expected auth scope seeded with %s, got %v", DefaultAuthRatelimitRate, repo.rates)
	}
	if _, ok := repo.rates[models.RatelimitScopeDefault]; ok {
		t.Error("Expected other scopes untouched")
	}
	if rl.Rate() != DefaultAuthRatelimitRate {
		t.Errorf("Expected enforced rate %s, got %s", DefaultAuthRatelimitRate, rl.Rate())
	}
}

func TestRateLimitReloader_LimitsAndReloads(t *testing.T) {
	t.Parallel()

	repo := &memRatelimitRepo{rates: map[string]string{models.RatelimitScopeAuth: "2-M"}}
	rl := newTestReloader(t, repo, models.RatelimitScopeAuth)
	h := rl.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		if code := hit(h, "203.0.113.7"); code != http.StatusOK {
			t.Fatalf("Expected request %d allowed, got %d", i+1, code)
		}
	}
	if code := hit(h, "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after limit, got %d", code)
	}
	if code := hit(h, "198.51.100.1"); code != http.StatusOK {
		t.Errorf("Expected other client unaffected, got %d", code)
	}

	built := rl.current()
	rl.load(context.Background())
	if rl.current() != built {
		t.Error("Expected the limiter middleware to be reused while the rate is unchanged")
	}

	repo.rates[models.RatelimitScopeAuth] = "10-M"
	rl.load(context.Background())
	if rl.current() == built {
		t.Error("Expected a new limiter middleware after the rate changed")
	}
	if rl.Rate() != "10-M" {
		t.Fatalf("Expected reloaded rate 10-M, got %s", rl.Rate())
	}
	if code := hit(h, "203.0.113.7"); code != http.StatusOK {
		t.Errorf("Expected request allowed after raising the limit, got %d", code)
	}
}

func TestRateLimitReloader_SharedAcrossRouters(t *testing.T) {
	t.Parallel()

	repo := &memRatelimitRepo{rates: map[string]string{models.RatelimitScopeDefault: "2-M"}}
	rl := newTestReloader(t, repo, models.RatelimitScopeDefault)

	var sessionsHits, usersHits int
	sessions := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { sessionsHits++ }))
	users := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { usersHits++ }))

	if code := hit(sessions, "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("Expected sessions request allowed, got %d", code)
	}
	if code := hit(users, "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("Expected users request allowed, got %d", code)
	}
	if sessionsHits != 1 || usersHits != 1 {
		t.Errorf("Expected each router to reach its own handler once, got sessions=%d users=%d", sessionsHits, usersHits)
	}
	if code := hit(sessions, "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("Expected the shared budget to be spent, got %d", code)
	}
}

func TestRateLimitReloader_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		repo *memRatelimitRepo
	}{
		{"db error", &memRatelimitRepo{rates: map[string]string{}, getErr: errors.New("db down")}},
		{"unparseable rate", &memRatelimitRepo{rates: map[string]string{models.RatelimitScopeCoach: "lots"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rl := newTestReloader(t, tt.repo, models.RatelimitScopeCoach)
			if rl.Rate() != DefaultCoachRatelimitRate {
				t.Errorf("Expected fallback %s, got %s", DefaultCoachRatelimitRate, rl.Rate())
			}
		})
	}
}

func TestRateLimitReloader_FailsOpenOnStoreError(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	repo := &memRatelimitRepo{rates: map[string]string{models.RatelimitScopeDefault: "1-M"}}
	rl, err := NewRateLimitReloader(client, repo, models.RatelimitScopeDefault, "", zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("Failed to create reloader: %v", err)
	}
	mr.Close()

	h := rl.Middleware()(okHandler())
	for i := 0; i < 3; i++ {
		if code := hit(h, "203.0.113.7"); code != http.StatusOK {
			t.Errorf("Expected request %d let through with redis down, got %d", i+1, code)
		}
	}
}

func TestRateLimitKey(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-IP", "192.0.2.4")
	if got := rateLimitKey(req); got != "ip:192.0.2.4" {
		t.Errorf("Expected ip key, got %s", got)
	}

	id := uuid.New()
	req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: id}))
	if got := rateLimitKey(req); got != "user:"+id.String() {
		t.Errorf("Expected user key, got %s", got)
	}
}
