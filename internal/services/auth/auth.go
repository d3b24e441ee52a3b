// Package auth handles email/password accounts and the tokens issued for them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/validation"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultIssuer is the iss claim on every token this service signs
	DefaultIssuer = "cookmate"

	claimEmail = "email"
	claimType  = "typ"
)

var (
	errInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
	errInactiveAccount    = fmt.Errorf("%w: account is deactivated", apperr.ErrUnauthorized)
	errInvalidToken       = fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized)
)

// Config configures token signing
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SignupInput is a new account request
type SignupInput struct {
	Email      string            `json:"email" validate:"required,email,max=255"`
	Password   string            `json:"password" validate:"required,min=8,max=128,password_strength"`
	Name       string            `json:"name" validate:"required,max=255"`
	SkillLevel models.SkillLevel `json:"skillLevel,omitempty" validate:"omitempty,skill_level"`
}

// LoginInput is an email/password login
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the access and refresh token issued at login
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Session is a signed-in user with fresh tokens
type Session struct {
	User   *models.User `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

// Service signs users up, logs them in and verifies their tokens
type Service struct {
	users      database.UserRepositoryInterface
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new auth service
func NewService(users database.UserRepositoryInterface, cfg Config, log *zap.Logger) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("JWT secret must be at least 32 characters")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:      users,
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     log,
		now:        time.Now,
	}, nil
}

// AccessTTL returns how long access tokens live
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// Signup creates an account and signs the user in
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = validation.SanitizeText(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	skill := in.SkillLevel
	if skill == "" {
		skill = models.SkillLevelBeginner
	}
	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		SkillLevel:   skill,
		Preferences:  models.DefaultPreferences(),
		IsActive:     true,
		LastLoginAt:  &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("email is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user_signed_up", zap.String("user_id", logger.SanitizeUserID(user.ID.String())))
	return s.newSession(user)
}

// Login checks the credentials and signs the user in
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !s.CheckPassword(user, in.Password) {
		s.logger.Info("login_failed", zap.String("user_id", logger.SanitizeUserID(user.ID.String())))
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, errInactiveAccount
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last_login_update_failed",
			zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
			zap.Error(err),
		)
	} else {
		user.LastLoginAt = &now
	}

	s.logger.Info("user_logged_in", zap.String("user_id", logger.SanitizeUserID(user.ID.String())))
	return s.newSession(user)
}

// Refresh exchanges a refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.ParseToken(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// Authenticate resolves an access token to an active user
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.ParseToken(accessToken, models.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return s.activeUser(ctx, claims.UserID)
}

// CheckPassword reports whether password matches the user's hash
func (s *Service) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *Service) activeUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, errInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, errInactiveAccount
	}
	return user, nil
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	access, err := s.sign(user, models.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, models.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		User: user,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.accessTTL / time.Second),
		},
	}, nil
}

func (s *Service) sign(user *models.User, typ models.TokenType, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	tok, err := jwt.NewBuilder().
		Subject(user.ID.String()).
		Issuer(s.issuer).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		JwtID(uuid.NewString()).
		Claim(claimEmail, user.Email).
		Claim(claimType, string(typ)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// ParseToken verifies the signature, expiry, issuer and token type
func (s *Service) ParseToken(raw string, want models.TokenType) (*models.TokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errInvalidToken
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		s.logger.Debug("token_rejected", zap.String("error", logger.SanitizeError(err)))
		return nil, errInvalidToken
	}

	userID, err := uuid.Parse(tok.Subject())
	if err != nil {
		return nil, errInvalidToken
	}

	claims := &models.TokenClaims{
		UserID: userID,
		Exp:    tok.Expiration().Unix(),
		Iat:    tok.IssuedAt().Unix(),
		Iss:    tok.Issuer(),
	}
	if v, ok := tok.Get(claimEmail); ok {
		if email, ok := v.(string); ok {
			claims.Email = email
		}
	}
	if v, ok := tok.Get(claimType); ok {
		if typ, ok := v.(string); ok {
			claims.Type = models.TokenType(typ)
		}
	}
	if claims.Type != want {
		return nil, errInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
