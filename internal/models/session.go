package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a cooking session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Valid reports whether the status is one of the known values
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusPaused, SessionStatusCompleted, SessionStatusAbandoned:
		return true
	default:
		return false
	}
}

// DefaultPace is the pace assigned to a new session when the client sends none
const DefaultPace = "normal"

// SessionContext tracks what happened during a session. The lists only grow.
type SessionContext struct {
	SkillLevel      SkillLevel `json:"skillLevel,omitempty"`
	Pace            string     `json:"pace,omitempty"`
	QuestionsAsked  []string   `json:"questionsAsked"`
	TipsProvided    []string   `json:"tipsProvided"`
	TimersUsed      []string   `json:"timersUsed"`
	Adaptations     []string   `json:"adaptations"`
	LastInteraction *time.Time `json:"lastInteraction,omitempty"`
}

// Normalize replaces nil lists with empty ones so they serialize as []
func (c *SessionContext) Normalize() {
	if c.QuestionsAsked == nil {
		c.QuestionsAsked = []string{}
	}
	if c.TipsProvided == nil {
		c.TipsProvided = []string{}
	}
	if c.TimersUsed == nil {
		c.TimersUsed = []string{}
	}
	if c.Adaptations == nil {
		c.Adaptations = []string{}
	}
}

// Clone returns a deep copy so callers can append without aliasing
func (c SessionContext) Clone() SessionContext {
	out := c
	out.QuestionsAsked = append([]string{}, c.QuestionsAsked...)
	out.TipsProvided = append([]string{}, c.TipsProvided...)
	out.TimersUsed = append([]string{}, c.TimersUsed...)
	out.Adaptations = append([]string{}, c.Adaptations...)
	if c.LastInteraction != nil {
		t := *c.LastInteraction
		out.LastInteraction = &t
	}
	return out
}

// SessionFeedback is the feedback a user leaves when ending a session
type SessionFeedback struct {
	Rating       *int     `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Difficulty   *int     `json:"difficulty,omitempty" validate:"omitempty,min=1,max=5"`
	Comments     string   `json:"comments,omitempty" validate:"max=2000"`
	Improvements []string `json:"improvements,omitempty" validate:"max=20,dive,max=500"`
}

// RatingOrZero returns the rating, or 0 when none was given
func (f *SessionFeedback) RatingOrZero() int {
	if f == nil || f.Rating == nil {
		return 0
	}
	return *f.Rating
}

// CookingSession represents one user's run through one recipe
type CookingSession struct {
	ID           uuid.UUID              `json:"id"`
	UserID       uuid.UUID              `json:"userId"`
	RecipeID     string                 `json:"recipeId"`
	RecipeName   string                 `json:"recipeName"`
	CurrentStep  int                    `json:"currentStep"`
	TotalSteps   int                    `json:"totalSteps"`
	Status       SessionStatus          `json:"status"`
	StartedAt    time.Time              `json:"startedAt"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	Duration     *int                   `json:"duration,omitempty"`
	Feedback     *SessionFeedback       `json:"feedback,omitempty"`
	Context      SessionContext         `json:"context"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	Interactions []*CoachingInteraction `json:"interactions,omitempty"`
}

// StepInRange reports whether step satisfies 0 <= step <= TotalSteps
func (s *CookingSession) StepInRange(step int) bool {
	return step >= 0 && step <= s.TotalSteps
}

// ElapsedSeconds returns floor(now - StartedAt) in whole seconds, never negative
func (s *CookingSession) ElapsedSeconds(now time.Time) int {
	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// SessionUpdate is a partial update. Nil fields are left untouched.
type SessionUpdate struct {
	CurrentStep *int            `json:"currentStep,omitempty"`
	Status      *SessionStatus  `json:"status,omitempty"`
	Context     *SessionContext `json:"context,omitempty"`
}

// IsEmpty reports whether the update carries no fields
func (u SessionUpdate) IsEmpty() bool {
	return u.CurrentStep == nil && u.Status == nil && u.Context == nil
}

// ApplyTo shallow-merges the update onto a durable session. Context is replaced as a whole.
func (u SessionUpdate) ApplyTo(s *CookingSession) {
	if u.CurrentStep != nil {
		s.CurrentStep = *u.CurrentStep
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.Context != nil {
		s.Context = u.Context.Clone()
		s.Context.Normalize()
	}
}

// ApplyToCached shallow-merges the update onto a cache entry
func (u SessionUpdate) ApplyToCached(c *CachedSession) {
	if u.CurrentStep != nil {
		c.CurrentStep = *u.CurrentStep
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Context != nil {
		c.Context = u.Context.Clone()
		c.Context.Normalize()
	}
}
