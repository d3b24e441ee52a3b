package database

import (
	"context"
	"time"

	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
)

// UserRepositoryInterface defines the user operations the services depend on
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// SessionRepositoryInterface defines the cooking session operations the services depend on
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *models.CookingSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CookingSession, error)
	Update(ctx context.Context, s *models.CookingSession) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*models.CookingSession, error)
	ListHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CookingSession, int, error)
	ListStartedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.CookingSession, error)
	ListRecentByRecipe(ctx context.Context, userID uuid.UUID, recipeID string, limit int) ([]*models.CookingSession, error)
	ListCompleted(ctx context.Context, userID uuid.UUID) ([]*models.CookingSession, error)
	CountCompleted(ctx context.Context, userID uuid.UUID) (int, error)
	ListIdleUserIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	ListIdle(ctx context.Context, userID uuid.UUID, cutoff time.Time) ([]*models.CookingSession, error)
}

// InteractionRepositoryInterface defines the coaching interaction operations the services depend on
type InteractionRepositoryInterface interface {
	Create(ctx context.Context, in *models.CoachingInteraction) error
	GetByIDForSession(ctx context.Context, id, sessionID uuid.UUID) (*models.CoachingInteraction, error)
	UpdateFeedback(ctx context.Context, in *models.CoachingInteraction) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.CoachingInteraction, error)
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.CoachingInteraction, error)
	ListSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.CoachingInteraction, error)
}

// ProgressRepositoryInterface defines the progress ledger operations the services depend on
type ProgressRepositoryInterface interface {
	GetByUserAndRecipe(ctx context.Context, userID uuid.UUID, recipeID string) (*models.UserProgress, error)
	Create(ctx context.Context, p *models.UserProgress) error
	Update(ctx context.Context, p *models.UserProgress) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserProgress, error)
	ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.UserProgress, error)
}

// RatelimitConfigRepositoryInterface defines the rate limit config operations the middleware depends on
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context, scope string) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface            = (*UserRepository)(nil)
	_ SessionRepositoryInterface         = (*SessionRepository)(nil)
	_ InteractionRepositoryInterface     = (*InteractionRepository)(nil)
	_ ProgressRepositoryInterface        = (*ProgressRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
)
