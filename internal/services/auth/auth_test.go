package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type memUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.User
	touched int
}

var _ database.UserRepositoryInterface = (*memUsers)(nil)

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return apperr.Conflict("duplicate email")
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *memUsers) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) TouchLastLogin(context.Context, uuid.UUID, time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.IsActive = false
	return nil
}

func newTestService(t *testing.T, users *memUsers) *Service {
	t.Helper()
	svc, err := NewService(users, Config{Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: 48 * time.Hour}, nil)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func signup(t *testing.T, svc *Service) *Session {
	t.Helper()
	sess, err := svc.Signup(context.Background(), SignupInput{
		Email:    "  Julia@Example.com ",
		Password: "Souffle42",
		Name:     "Julia",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return sess
}

func TestNewService_ShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewService(newMemUsers(), Config{Secret: "short"}, nil); err == nil {
		t.Error("Expected error for short secret")
	}
}

func TestSignup(t *testing.T) {
	t.Parallel()

	users := newMemUsers()
	svc := newTestService(t, users)

	sess := signup(t, svc)
	if sess.User.Email != "julia@example.com" {
		t.Errorf("Expected normalized email, got %s", sess.User.Email)
	}
	if sess.User.SkillLevel != models.SkillLevelBeginner || !sess.User.IsActive {
		t.Errorf("Unexpected defaults %+v", sess.User)
	}
	if sess.User.PasswordHash == "Souffle42" || sess.User.PasswordHash == "" {
		t.Error("Expected password to be hashed")
	}
	if sess.Tokens.TokenType != "Bearer" || sess.Tokens.ExpiresIn != 3600 {
		t.Errorf("Unexpected token pair %+v", sess.Tokens)
	}

	_, err := svc.Signup(context.Background(), SignupInput{Email: "julia@example.com", Password: "Souffle42", Name: "J"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input SignupInput
		field string
	}{
		{"bad email", SignupInput{Email: "nope", Password: "Souffle42", Name: "J"}, "email"},
		{"short password", SignupInput{Email: "a@b.co", Password: "Ab1", Name: "J"}, "password"},
		{"weak password", SignupInput{Email: "a@b.co", Password: "alllowercase", Name: "J"}, "password"},
		{"missing name", SignupInput{Email: "a@b.co", Password: "Souffle42"}, "name"},
		{"bad skill", SignupInput{Email: "a@b.co", Password: "Souffle42", Name: "J", SkillLevel: "chef"}, "skillLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, newMemUsers())
			_, err := svc.Signup(context.Background(), tt.input)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("Expected field %s, got %v", tt.field, ve.Fields)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	users := newMemUsers()
	svc := newTestService(t, users)
	created := signup(t, svc)
	ctx := context.Background()

	sess, err := svc.Login(ctx, LoginInput{Email: "JULIA@example.com", Password: "Souffle42"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sess.User.ID != created.User.ID || users.touched != 1 {
		t.Errorf("Expected login for the created user with last login touched")
	}

	for name, in := range map[string]LoginInput{
		"wrong password": {Email: "julia@example.com", Password: "Souffle43"},
		"unknown email":  {Email: "nobody@example.com", Password: "Souffle42"},
	} {
		if _, err := svc.Login(ctx, in); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	_ = users.Deactivate(ctx, created.User.ID)
	if _, err := svc.Login(ctx, LoginInput{Email: "julia@example.com", Password: "Souffle42"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for deactivated account, got %v", err)
	}
}

func TestAuthenticateAndRefresh(t *testing.T) {
	t.Parallel()

	users := newMemUsers()
	svc := newTestService(t, users)
	sess := signup(t, svc)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, sess.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if user.ID != sess.User.ID {
		t.Errorf("Expected user %s, got %s", sess.User.ID, user.ID)
	}

	if _, err := svc.Authenticate(ctx, sess.Tokens.RefreshToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected refresh token to be rejected as access token, got %v", err)
	}
	if _, err := svc.Refresh(ctx, sess.Tokens.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected access token to be rejected for refresh, got %v", err)
	}

	refreshed, err := svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Unexpected refresh error: %v", err)
	}
	if refreshed.Tokens.AccessToken == "" {
		t.Error("Expected a new access token")
	}

	_ = users.Deactivate(ctx, sess.User.ID)
	if _, err := svc.Authenticate(ctx, sess.Tokens.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Expected deactivated user to be rejected, got %v", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	t.Parallel()

	users := newMemUsers()
	svc := newTestService(t, users)
	sess := signup(t, svc)

	other, err := NewService(users, Config{Secret: strings.Repeat("x", 40)}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expired := newTestService(t, users)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := map[string]struct {
		svc   *Service
		token string
	}{
		"empty":        {svc, ""},
		"garbage":      {svc, "not.a.jwt"},
		"tampered":     {svc, sess.Tokens.AccessToken[:len(sess.Tokens.AccessToken)-2] + "xx"},
		"other secret": {other, sess.Tokens.AccessToken},
		"after expiry": {expired, sess.Tokens.AccessToken},
	}
	for name, tt := range tests {
		if _, err := tt.svc.ParseToken(tt.token, models.TokenTypeAccess); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}
