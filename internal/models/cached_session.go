package models

import (
	"time"

	"github.com/google/uuid"
)

// CookingTimer is a countdown started during a session
type CookingTimer struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Duration  int       `json:"duration"`
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
}

// Remaining returns whole seconds left at now, never negative
func (t *CookingTimer) Remaining(now time.Time) int {
	left := t.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// CachedSession is the denormalized session document kept in the fast cache.
// It is a transient view of a CookingSession and never authoritative once gone.
type CachedSession struct {
	SessionID   uuid.UUID      `json:"sessionId"`
	UserID      uuid.UUID      `json:"userId"`
	RecipeID    string         `json:"recipeId"`
	RecipeName  string         `json:"recipeName"`
	CurrentStep int            `json:"currentStep"`
	TotalSteps  int            `json:"totalSteps"`
	Status      SessionStatus  `json:"status"`
	StartTime   time.Time      `json:"startTime"`
	Context     SessionContext `json:"context"`
	Timers      []CookingTimer `json:"timers"`
}

// NewCachedSession builds the initial cache document for a durable session
func NewCachedSession(s *CookingSession) *CachedSession {
	ctx := s.Context.Clone()
	ctx.Normalize()
	return &CachedSession{
		SessionID:   s.ID,
		UserID:      s.UserID,
		RecipeID:    s.RecipeID,
		RecipeName:  s.RecipeName,
		CurrentStep: s.CurrentStep,
		TotalSteps:  s.TotalSteps,
		Status:      s.Status,
		StartTime:   s.StartedAt,
		Context:     ctx,
		Timers:      []CookingTimer{},
	}
}

// ToSession projects the cache document onto the session shape returned to callers
func (c *CachedSession) ToSession() *CookingSession {
	ctx := c.Context.Clone()
	ctx.Normalize()
	return &CookingSession{
		ID:          c.SessionID,
		UserID:      c.UserID,
		RecipeID:    c.RecipeID,
		RecipeName:  c.RecipeName,
		CurrentStep: c.CurrentStep,
		TotalSteps:  c.TotalSteps,
		Status:      c.Status,
		StartedAt:   c.StartTime,
		Context:     ctx,
		CreatedAt:   c.StartTime,
		UpdatedAt:   c.StartTime,
	}
}
