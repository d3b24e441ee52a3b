// Package sessions coordinates cooking sessions across the durable store and the session cache.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/realtime"
	"github.com/benvon/cookmate/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is the history page size when none is given
	DefaultPageSize = 10
	// MaxPageSize caps the history page size
	MaxPageSize = 100
	// MaxTimerSeconds caps a single cooking timer
	MaxTimerSeconds = 24 * 60 * 60
)

// Cache is the subset of the session cache the orchestrator uses
type Cache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.CachedSession, error)
	Set(ctx context.Context, entry *models.CachedSession) error
	Update(ctx context.Context, id uuid.UUID, mutate func(*models.CachedSession)) (*models.CachedSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetTimer(ctx context.Context, sessionID uuid.UUID, timer models.CookingTimer) error
	GetTimer(ctx context.Context, sessionID uuid.UUID, timerID string) (*models.CookingTimer, error)
	DeleteTimer(ctx context.Context, sessionID uuid.UUID, timerID string) (bool, error)
}

// ProgressRecorder folds a completed session into the user's progress ledger
type ProgressRecorder interface {
	RecordCompletion(ctx context.Context, userID uuid.UUID, recipeID, recipeName string, duration *int, feedback *models.SessionFeedback) (*models.UserProgress, error)
}

// StartContext holds the client overrides accepted when starting a session
type StartContext struct {
	SkillLevel models.SkillLevel `json:"skillLevel,omitempty" validate:"omitempty,skill_level"`
	Pace       string            `json:"pace,omitempty" validate:"omitempty,max=20"`
}

// StartSessionInput is the request to start cooking a recipe
type StartSessionInput struct {
	RecipeID   string        `json:"recipeId" validate:"required,max=100"`
	RecipeName string        `json:"recipeName" validate:"required,max=255"`
	TotalSteps int           `json:"totalSteps" validate:"min=1,max=1000"`
	Context    *StartContext `json:"context,omitempty"`
}

// EndResult is returned when a session is completed
type EndResult struct {
	Session  *models.CookingSession `json:"session"`
	Progress *models.UserProgress   `json:"progress"`
}

// HistoryPage is one page of a user's session history
type HistoryPage struct {
	Sessions    []*models.CookingSession `json:"sessions"`
	Total       int                      `json:"total"`
	TotalPages  int                      `json:"totalPages"`
	CurrentPage int                      `json:"currentPage"`
}

// Orchestrator owns the session lifecycle
type Orchestrator struct {
	sessions     database.SessionRepositoryInterface
	interactions database.InteractionRepositoryInterface
	cache        Cache
	progress     ProgressRecorder
	publisher    realtime.Publisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewOrchestrator creates a new session orchestrator
func NewOrchestrator(
	sessions database.SessionRepositoryInterface,
	interactions database.InteractionRepositoryInterface,
	cache Cache,
	progress ProgressRecorder,
	publisher realtime.Publisher,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		sessions:     sessions,
		interactions: interactions,
		cache:        cache,
		progress:     progress,
		publisher:    publisher,
		logger:       log,
		now:          time.Now,
	}
}

// StartSession creates the durable session and its cache entry
func (o *Orchestrator) StartSession(ctx context.Context, user *models.User, in StartSessionInput) (*models.CookingSession, error) {
	in.RecipeID = strings.TrimSpace(in.RecipeID)
	in.RecipeName = validation.SanitizeText(in.RecipeName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sessionCtx := models.SessionContext{
		SkillLevel: user.SkillLevel,
		Pace:       models.DefaultPace,
	}
	if in.Context != nil {
		if in.Context.SkillLevel != "" {
			sessionCtx.SkillLevel = in.Context.SkillLevel
		}
		if pace := strings.TrimSpace(in.Context.Pace); pace != "" {
			sessionCtx.Pace = pace
		}
	}
	sessionCtx.Normalize()

	now := o.now().UTC()
	session := &models.CookingSession{
		ID:          uuid.New(),
		UserID:      user.ID,
		RecipeID:    in.RecipeID,
		RecipeName:  in.RecipeName,
		CurrentStep: 0,
		TotalSteps:  in.TotalSteps,
		Status:      models.SessionStatusActive,
		StartedAt:   now,
		Context:     sessionCtx,
	}

	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	if err := o.cache.Set(ctx, models.NewCachedSession(session)); err != nil {
		o.logger.Warn("session_cache_write_failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	o.publish(ctx, session.ID, realtime.EventSessionStarted, map[string]any{
		"sessionId":  session.ID,
		"recipeName": session.RecipeName,
		"totalSteps": session.TotalSteps,
	})

	o.logger.Info("session_started",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
		zap.String("recipe_id", logger.SanitizeString(session.RecipeID, 100)),
		zap.Int("total_steps", session.TotalSteps),
	)

	return session, nil
}

// GetSession returns the cached view when present, otherwise the durable row with its interactions.
// A cache miss never repopulates the cache.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*models.CookingSession, error) {
	entry, err := o.cache.Get(ctx, sessionID)
	if err != nil {
		o.logger.Warn("session_cache_read_failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
		entry = nil
	}
	if entry != nil {
		if entry.UserID != userID {
			return nil, apperr.Forbidden("session belongs to another user")
		}
		return entry.ToSession(), nil
	}

	session, err := o.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	interactions, err := o.interactions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	session.Interactions = interactions

	return session, nil
}

// UpdateSession applies a partial update to the durable row and, when present, the cache entry
func (o *Orchestrator) UpdateSession(ctx context.Context, sessionID, userID uuid.UUID, update models.SessionUpdate) (*models.CookingSession, error) {
	if update.IsEmpty() {
		return nil, apperr.NewValidationError("body", "at least one of currentStep, status or context is required")
	}
	if update.Status != nil {
		switch *update.Status {
		case models.SessionStatusActive, models.SessionStatusPaused, models.SessionStatusAbandoned:
		case models.SessionStatusCompleted:
			return nil, apperr.NewValidationError("status", "use the end session operation to complete a session")
		default:
			return nil, apperr.NewValidationError("status", "must be one of active, paused, abandoned")
		}
	}

	session, err := o.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, apperr.Conflict("session is already completed")
	}
	if update.CurrentStep != nil && !session.StepInRange(*update.CurrentStep) {
		return nil, apperr.NewValidationError("currentStep", fmt.Sprintf("must be between 0 and %d", session.TotalSteps))
	}

	if err := o.apply(ctx, session, update); err != nil {
		return nil, err
	}

	o.publish(ctx, session.ID, realtime.EventSessionUpdated, map[string]any{
		"sessionId": session.ID,
		"updates":   update,
	})

	return session, nil
}

// ApplyUpdate writes an already-authorized update through both stores without publishing.
// The coaching engine uses it for interaction side effects.
func (o *Orchestrator) ApplyUpdate(ctx context.Context, sessionID uuid.UUID, mutate func(*models.SessionContext, *int)) error {
	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session.Status == models.SessionStatusCompleted {
		return apperr.Conflict("session is already completed")
	}

	step := session.CurrentStep
	sessionCtx := session.Context.Clone()
	mutate(&sessionCtx, &step)
	if !session.StepInRange(step) {
		return apperr.NewValidationError("currentStep", fmt.Sprintf("must be between 0 and %d", session.TotalSteps))
	}

	update := models.SessionUpdate{Context: &sessionCtx}
	if step != session.CurrentStep {
		update.CurrentStep = &step
	}
	return o.apply(ctx, session, update)
}

func (o *Orchestrator) apply(ctx context.Context, session *models.CookingSession, update models.SessionUpdate) error {
	update.ApplyTo(session)
	if err := o.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if _, err := o.cache.Update(ctx, session.ID, update.ApplyToCached); err != nil {
		o.logger.Warn("session_cache_write_failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// EndSession completes the session, records progress and drops the cache entry
func (o *Orchestrator) EndSession(ctx context.Context, sessionID, userID uuid.UUID, feedback *models.SessionFeedback) (*EndResult, error) {
	if feedback != nil {
		if err := validation.Struct(feedback); err != nil {
			return nil, err
		}
	}

	session, err := o.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, apperr.Conflict("session is already completed")
	}

	now := o.now().UTC()
	duration := session.ElapsedSeconds(now)
	if feedback == nil {
		feedback = &models.SessionFeedback{}
	}

	before := *session
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &now
	session.Duration = &duration
	session.Feedback = feedback

	if err := o.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	// Once the durable row is written, reads must not see the cached active copy.
	if err := o.cache.Delete(ctx, session.ID); err != nil {
		o.logger.Warn("session_cache_delete_failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	progress, err := o.progress.RecordCompletion(ctx, userID, session.RecipeID, session.RecipeName, session.Duration, feedback)
	if err != nil {
		// Reopen the row so the client can retry the end and the completion is not lost.
		if rerr := o.sessions.Update(ctx, &before); rerr != nil {
			o.logger.Error("session_end_rollback_failed",
				zap.String("session_id", session.ID.String()),
				zap.Error(rerr),
			)
		}
		return nil, fmt.Errorf("failed to record progress: %w", err)
	}

	o.publish(ctx, session.ID, realtime.EventSessionEnded, map[string]any{
		"sessionId": session.ID,
		"duration":  duration,
		"feedback":  feedback,
	})

	o.logger.Info("session_ended",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.Int("duration_seconds", duration),
		zap.Int("rating", feedback.RatingOrZero()),
	)

	return &EndResult{Session: session, Progress: progress}, nil
}

// ListActiveSessions returns the user's active and paused sessions, newest first
func (o *Orchestrator) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.CookingSession, error) {
	sessions, err := o.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return sessions, nil
}

// ListSessionHistory returns one page of the user's sessions, newest first
func (o *Orchestrator) ListSessionHistory(ctx context.Context, userID uuid.UUID, page, pageSize int) (*HistoryPage, error) {
	page, pageSize = NormalizePage(page, pageSize)

	sessions, total, err := o.sessions.ListHistory(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list session history: %w", err)
	}

	return &HistoryPage{
		Sessions:    sessions,
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(pageSize))),
		CurrentPage: page,
	}, nil
}

// NormalizePage applies the paging defaults and bounds
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// StartTimer starts a countdown for the session. Timers live only in the cache.
func (o *Orchestrator) StartTimer(ctx context.Context, sessionID, userID uuid.UUID, label string, seconds int) (*models.CookingTimer, error) {
	label = validation.SanitizeText(label)
	ve := &apperr.ValidationError{}
	if label == "" {
		ve.Add("label", "is required")
	} else if len(label) > 100 {
		ve.Add("label", "must be at most 100 characters")
	}
	if seconds < 1 || seconds > MaxTimerSeconds {
		ve.Add("duration", fmt.Sprintf("must be between 1 and %d", MaxTimerSeconds))
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	session, err := o.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, apperr.Conflict("session is already completed")
	}

	now := o.now().UTC()
	timer := models.CookingTimer{
		ID:        uuid.NewString(),
		Label:     label,
		Duration:  seconds,
		StartedAt: now,
		EndsAt:    now.Add(time.Duration(seconds) * time.Second),
	}
	if err := o.cache.SetTimer(ctx, sessionID, timer); err != nil {
		return nil, fmt.Errorf("failed to start timer: %w", err)
	}

	if err := o.ApplyUpdate(ctx, sessionID, func(c *models.SessionContext, _ *int) {
		c.TimersUsed = append(c.TimersUsed, label)
	}); err != nil {
		return nil, err
	}
	if _, err := o.cache.Update(ctx, sessionID, func(e *models.CachedSession) {
		e.Timers = append(e.Timers, timer)
	}); err != nil {
		o.logger.Warn("session_cache_write_failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}

	o.publish(ctx, sessionID, realtime.EventTimerStarted, map[string]any{
		"sessionId": sessionID,
		"timerId":   timer.ID,
		"label":     timer.Label,
		"duration":  timer.Duration,
		"endsAt":    timer.EndsAt,
	})

	return &timer, nil
}

// GetTimer returns a running timer and its remaining seconds
func (o *Orchestrator) GetTimer(ctx context.Context, sessionID, userID uuid.UUID, timerID string) (*models.CookingTimer, int, error) {
	if _, err := o.GetSession(ctx, sessionID, userID); err != nil {
		return nil, 0, err
	}
	timer, err := o.cache.GetTimer(ctx, sessionID, timerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read timer: %w", err)
	}
	if timer == nil {
		return nil, 0, apperr.NotFound("timer")
	}
	return timer, timer.Remaining(o.now()), nil
}

// CancelTimer stops a running timer
func (o *Orchestrator) CancelTimer(ctx context.Context, sessionID, userID uuid.UUID, timerID string) error {
	if _, err := o.GetSession(ctx, sessionID, userID); err != nil {
		return err
	}
	deleted, err := o.cache.DeleteTimer(ctx, sessionID, timerID)
	if err != nil {
		return fmt.Errorf("failed to cancel timer: %w", err)
	}
	if !deleted {
		return apperr.NotFound("timer")
	}

	if _, err := o.cache.Update(ctx, sessionID, func(e *models.CachedSession) {
		kept := e.Timers[:0]
		for _, t := range e.Timers {
			if t.ID != timerID {
				kept = append(kept, t)
			}
		}
		e.Timers = kept
	}); err != nil {
		o.logger.Warn("session_cache_write_failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}

	o.publish(ctx, sessionID, realtime.EventTimerCancelled, map[string]any{
		"sessionId": sessionID,
		"timerId":   timerID,
	})
	return nil
}

// AbandonStale marks the user's idle sessions abandoned. A session still present in the cache is left alone.
func (o *Orchestrator) AbandonStale(ctx context.Context, userID uuid.UUID, idleFor time.Duration) (int, error) {
	cutoff := o.now().Add(-idleFor)
	idle, err := o.sessions.ListIdle(ctx, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	abandoned := 0
	for _, session := range idle {
		entry, err := o.cache.Get(ctx, session.ID)
		if err != nil {
			o.logger.Warn("session_cache_read_failed",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if entry != nil {
			continue
		}

		status := models.SessionStatusAbandoned
		update := models.SessionUpdate{Status: &status}
		if err := o.apply(ctx, session, update); err != nil {
			return abandoned, err
		}
		abandoned++

		o.publish(ctx, session.ID, realtime.EventSessionUpdated, map[string]any{
			"sessionId": session.ID,
			"updates":   update,
		})
	}

	if abandoned > 0 {
		o.logger.Info("stale_sessions_abandoned",
			zap.String("user_id", logger.SanitizeUserID(userID.String())),
			zap.Int("count", abandoned),
		)
	}
	return abandoned, nil
}

// loadOwned reads the durable row and enforces ownership
func (o *Orchestrator) loadOwned(ctx context.Context, sessionID, userID uuid.UUID) (*models.CookingSession, error) {
	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("session")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != userID {
		return nil, apperr.Forbidden("session belongs to another user")
	}
	return session, nil
}

func (o *Orchestrator) publish(ctx context.Context, sessionID uuid.UUID, eventType realtime.EventType, data map[string]any) {
	if o.publisher == nil {
		return
	}
	ev := realtime.Event{
		Topic:     realtime.SessionTopic(sessionID),
		Type:      eventType,
		Data:      data,
		Timestamp: o.now().UTC(),
	}
	if err := o.publisher.Publish(ctx, ev); err != nil {
		o.logger.Warn("realtime_publish_failed",
			zap.String("session_id", sessionID.String()),
			zap.String("event", string(eventType)),
			zap.Error(err),
		)
	}
}
