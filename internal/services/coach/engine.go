// Package coach runs AI coaching exchanges against a cooking session and records them.
package coach

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/realtime"
	"github.com/benvon/cookmate/internal/services/ai"
	"github.com/benvon/cookmate/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName   = "github.com/benvon/cookmate/internal/services/coach"
	historyFetch = 5
	historyTurns = 3
)

// SessionAccess is the slice of the session orchestrator the engine needs
type SessionAccess interface {
	GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*models.CookingSession, error)
	ApplyUpdate(ctx context.Context, sessionID uuid.UUID, mutate func(*models.SessionContext, *int)) error
}

// AskContext is optional client context sent with a question
type AskContext struct {
	RecipeSection string   `json:"recipeSection,omitempty" validate:"max=100"`
	UserEmotion   string   `json:"userEmotion,omitempty" validate:"max=50"`
	Confidence    *float64 `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
}

// AskInput is a free-form question about the current recipe
type AskInput struct {
	SessionID uuid.UUID   `json:"sessionId" validate:"required"`
	Question  string      `json:"question" validate:"required,max=2000"`
	Context   *AskContext `json:"context,omitempty"`
}

// StepGuidanceInput requests guidance for a specific step
type StepGuidanceInput struct {
	SessionID  uuid.UUID        `json:"sessionId" validate:"required"`
	StepNumber int              `json:"stepNumber" validate:"min=1"`
	StepData   *models.StepData `json:"stepData,omitempty"`
}

// TroubleshootInput describes a problem the cook ran into
type TroubleshootInput struct {
	SessionID uuid.UUID      `json:"sessionId" validate:"required"`
	Issue     string         `json:"issue" validate:"required,max=1000"`
	Context   map[string]any `json:"context,omitempty" validate:"max=20"`
}

// SubstituteInput asks for alternatives to an ingredient
type SubstituteInput struct {
	SessionID  uuid.UUID      `json:"sessionId" validate:"required"`
	Ingredient string         `json:"ingredient" validate:"required,max=200"`
	Context    map[string]any `json:"context,omitempty" validate:"max=20"`
}

// FeedbackInput rates an earlier interaction
type FeedbackInput struct {
	SessionID     uuid.UUID `json:"sessionId" validate:"required"`
	InteractionID uuid.UUID `json:"interactionId" validate:"required"`
	Rating        int       `json:"rating" validate:"min=1,max=5"`
	Feedback      string    `json:"feedback,omitempty" validate:"max=2000"`
}

// Result is what every coaching call returns
type Result struct {
	InteractionID uuid.UUID              `json:"interactionId"`
	Type          models.InteractionType `json:"type"`
	Response      string                 `json:"response"`
	ResponseTime  int                    `json:"responseTime"`
	Provider      string                 `json:"provider"`
	Usage         ai.Usage               `json:"usage"`
}

// Engine runs the shared coaching pipeline for every interaction type
type Engine struct {
	sessions     SessionAccess
	interactions database.InteractionRepositoryInterface
	gateway      ai.Gateway
	publisher    realtime.Publisher
	policies     map[models.InteractionType]*Policy
	tracer       trace.Tracer
	logger       *zap.Logger
	now          func() time.Time
}

// NewEngine creates a coaching engine using the embedded prompt table
func NewEngine(
	sessions SessionAccess,
	interactions database.InteractionRepositoryInterface,
	gateway ai.Gateway,
	publisher realtime.Publisher,
	log *zap.Logger,
) (*Engine, error) {
	policies, err := LoadPolicies()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		sessions:     sessions,
		interactions: interactions,
		gateway:      gateway,
		publisher:    publisher,
		policies:     policies,
		tracer:       otel.Tracer(tracerName),
		logger:       log,
		now:          time.Now,
	}, nil
}

// Ask answers a free-form question, replaying recent conversation to the model
func (e *Engine) Ask(ctx context.Context, user *models.User, in AskInput) (*Result, error) {
	in.Question = validation.SanitizeText(in.Question)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ictx := models.InteractionContext{}
	if in.Context != nil {
		ictx.RecipeSection = validation.SanitizeText(in.Context.RecipeSection)
		ictx.UserEmotion = validation.SanitizeText(in.Context.UserEmotion)
		ictx.Confidence = in.Context.Confidence
	}

	return e.run(ctx, user, in.SessionID, models.InteractionQuestionAnswer, promptData{Question: in.Question}, ictx, map[string]any{
		"question": in.Question,
	})
}

// StepGuidance explains one recipe step and moves the session to it
func (e *Engine) StepGuidance(ctx context.Context, user *models.User, in StepGuidanceInput) (*Result, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	data := promptData{Step: in.StepNumber}
	ictx := models.InteractionContext{}
	if in.StepData != nil {
		data.StepData = *in.StepData
		ictx.StepData = in.StepData
	}

	return e.run(ctx, user, in.SessionID, models.InteractionStepGuidance, data, ictx, map[string]any{
		"stepNumber": in.StepNumber,
	})
}

// Tip suggests a tip for the session's current step
func (e *Engine) Tip(ctx context.Context, user *models.User, sessionID uuid.UUID) (*Result, error) {
	return e.run(ctx, user, sessionID, models.InteractionTipSuggestion, promptData{}, models.InteractionContext{}, nil)
}

// Troubleshoot gives advice on a problem
func (e *Engine) Troubleshoot(ctx context.Context, user *models.User, in TroubleshootInput) (*Result, error) {
	in.Issue = validation.SanitizeText(in.Issue)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ictx := models.InteractionContext{Issue: in.Issue, Client: in.Context}
	return e.run(ctx, user, in.SessionID, models.InteractionTroubleshooting, promptData{Issue: in.Issue}, ictx, map[string]any{
		"issue": in.Issue,
	})
}

// Substitute suggests alternatives for an ingredient
func (e *Engine) Substitute(ctx context.Context, user *models.User, in SubstituteInput) (*Result, error) {
	in.Ingredient = validation.SanitizeText(in.Ingredient)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ictx := models.InteractionContext{Ingredient: in.Ingredient, Client: in.Context}
	return e.run(ctx, user, in.SessionID, models.InteractionSubstitutionHelp, promptData{Ingredient: in.Ingredient}, ictx, map[string]any{
		"ingredient": in.Ingredient,
	})
}

func (e *Engine) run(
	ctx context.Context,
	user *models.User,
	sessionID uuid.UUID,
	kind models.InteractionType,
	data promptData,
	ictx models.InteractionContext,
	eventExtra map[string]any,
) (*Result, error) {
	policy, ok := e.policies[kind]
	if !ok {
		return nil, fmt.Errorf("no coaching policy for %s", kind)
	}

	session, err := e.sessions.GetSession(ctx, sessionID, user.ID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, apperr.Conflict("session is already completed")
	}

	skill := session.Context.SkillLevel
	if skill == "" {
		skill = user.SkillLevel
	}

	step := session.CurrentStep
	if kind == models.InteractionStepGuidance {
		if !session.StepInRange(data.Step) {
			return nil, apperr.NewValidationError("stepNumber", fmt.Sprintf("must be between 1 and %d", session.TotalSteps))
		}
		step = data.Step
	}
	data.Step = step
	data.RecipeName = session.RecipeName
	data.SkillLevel = skill
	if session.TotalSteps > 0 {
		data.PercentDone = int(math.Round(float64(step) / float64(session.TotalSteps) * 100))
	}

	cc := ai.CoachingContext{
		SessionID:       session.ID,
		UserID:          user.ID,
		RecipeID:        session.RecipeID,
		RecipeName:      session.RecipeName,
		CurrentStep:     step,
		TotalSteps:      session.TotalSteps,
		SkillLevel:      skill,
		InteractionType: kind,
	}
	if policy.UsesHistory {
		recent, err := e.interactions.ListRecent(ctx, session.ID, historyFetch)
		if err != nil {
			return nil, fmt.Errorf("failed to load interaction history: %w", err)
		}
		// recent is newest first. The prompt replays the newest turns oldest to newest.
		if len(recent) > historyTurns {
			recent = recent[:historyTurns]
		}
		for i := len(recent) - 1; i >= 0; i-- {
			cc.History = append(cc.History, ai.HistoryTurn{UserInput: recent[i].UserInput, CoachResponse: recent[i].CoachResponse})
		}
	}

	instruction, err := render(policy.instruction, data)
	if err != nil {
		return nil, err
	}
	userInput, err := render(policy.input, data)
	if err != nil {
		return nil, err
	}

	completion, elapsed, err := e.generate(ctx, instruction, cc)
	if err != nil {
		e.logger.Error("coach_ai_call_failed",
			zap.String("session_id", session.ID.String()),
			zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
			zap.String("type", string(kind)),
			zap.Int64("elapsed_ms", elapsed.Milliseconds()),
			zap.String("error", logger.SanitizeError(err)),
		)
		var upErr *ai.UpstreamProviderError
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, &ai.UpstreamProviderError{Provider: "unknown", Err: err}
	}

	now := e.now().UTC()
	responseTime := int(elapsed.Milliseconds())
	ictx.CurrentStep = step
	ictx.AdaptationMade = policy.AdaptationMade

	interaction := &models.CoachingInteraction{
		ID:              uuid.New(),
		SessionID:       session.ID,
		Timestamp:       now,
		UserInput:       userInput,
		CoachResponse:   completion.Text,
		InteractionType: kind,
		Context:         ictx,
		ResponseTime:    &responseTime,
	}
	if err := e.interactions.Create(ctx, interaction); err != nil {
		return nil, fmt.Errorf("failed to save interaction: %w", err)
	}

	if policy.effect != nil {
		run := &interactionRun{data: data, response: completion.Text, at: now}
		if err := e.sessions.ApplyUpdate(ctx, session.ID, func(sc *models.SessionContext, s *int) {
			policy.effect(run, sc, s)
		}); err != nil {
			e.logger.Warn("coach_session_update_failed",
				zap.String("session_id", session.ID.String()),
				zap.String("type", string(kind)),
				zap.Error(err),
			)
		}
	}

	e.publish(ctx, session.ID, policy.Event, interaction, eventExtra)

	e.logger.Info("coaching_interaction",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
		zap.String("type", string(kind)),
		zap.Int("response_time_ms", responseTime),
		zap.Bool("adaptation_made", policy.AdaptationMade),
		zap.String("provider", completion.Provider),
	)

	return &Result{
		InteractionID: interaction.ID,
		Type:          kind,
		Response:      completion.Text,
		ResponseTime:  responseTime,
		Provider:      completion.Provider,
		Usage:         completion.Usage,
	}, nil
}

func (e *Engine) generate(ctx context.Context, instruction string, cc ai.CoachingContext) (*ai.Completion, time.Duration, error) {
	ctx, span := e.tracer.Start(ctx, "coach.generate", trace.WithAttributes(
		attribute.String("coach.session_id", cc.SessionID.String()),
		attribute.String("coach.interaction_type", string(cc.InteractionType)),
		attribute.Int("coach.history_turns", len(cc.History)),
	))
	defer span.End()

	start := time.Now()
	completion, err := e.gateway.GenerateCoachingResponse(ctx, instruction, cc)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ai provider failed")
		return nil, elapsed, err
	}

	span.SetAttributes(
		attribute.String("coach.provider", completion.Provider),
		attribute.Int64("coach.total_tokens", completion.Usage.TotalTokens),
	)
	return completion, elapsed, nil
}

func (e *Engine) publish(ctx context.Context, sessionID uuid.UUID, eventType realtime.EventType, in *models.CoachingInteraction, extra map[string]any) {
	if e.publisher == nil {
		return
	}
	data := map[string]any{
		"interactionId": in.ID,
		"response":      in.CoachResponse,
		"type":          in.InteractionType,
	}
	for k, v := range extra {
		data[k] = v
	}

	ev := realtime.Event{
		Topic:     realtime.SessionTopic(sessionID),
		Type:      eventType,
		Data:      data,
		Timestamp: in.Timestamp,
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("realtime_publish_failed",
			zap.String("session_id", sessionID.String()),
			zap.String("event", string(eventType)),
			zap.Error(err),
		)
	}
}

// RecordFeedback stores the user's rating for an interaction. Repeating it overwrites the previous rating.
func (e *Engine) RecordFeedback(ctx context.Context, user *models.User, in FeedbackInput) (*models.CoachingInteraction, error) {
	in.Feedback = validation.SanitizeText(in.Feedback)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if _, err := e.sessions.GetSession(ctx, in.SessionID, user.ID); err != nil {
		return nil, err
	}

	interaction, err := e.interactions.GetByIDForSession(ctx, in.InteractionID, in.SessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("interaction")
		}
		return nil, fmt.Errorf("failed to load interaction: %w", err)
	}

	rating := in.Rating
	interaction.UserSatisfaction = &rating
	interaction.Context.UserFeedback = in.Feedback
	if err := e.interactions.UpdateFeedback(ctx, interaction); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	return interaction, nil
}

// AnalyticsSummary aggregates a session's interactions.
// AverageSatisfaction is a one-decimal string such as "4.0", or the number 0 when nothing was rated.
type AnalyticsSummary struct {
	TotalInteractions   int                            `json:"totalInteractions"`
	InteractionTypes    map[models.InteractionType]int `json:"interactionTypes"`
	AverageResponseTime int                            `json:"averageResponseTime"`
	AverageSatisfaction any                            `json:"averageSatisfaction"`
	AdaptationsMade     int                            `json:"adaptationsMade"`
}

// InteractionSummary is the per-interaction row of the analytics view
type InteractionSummary struct {
	ID           uuid.UUID              `json:"id"`
	Type         models.InteractionType `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	ResponseTime *int                   `json:"responseTime"`
	Satisfaction *int                   `json:"satisfaction"`
}

// Analytics is the coaching analytics for one session
type Analytics struct {
	Analytics    AnalyticsSummary     `json:"analytics"`
	Interactions []InteractionSummary `json:"interactions"`
}

// GetAnalytics summarizes every interaction in the session
func (e *Engine) GetAnalytics(ctx context.Context, user *models.User, sessionID uuid.UUID) (*Analytics, error) {
	if _, err := e.sessions.GetSession(ctx, sessionID, user.ID); err != nil {
		return nil, err
	}

	interactions, err := e.interactions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return Summarize(interactions), nil
}

// Summarize computes analytics over interactions already in timestamp order
func Summarize(interactions []*models.CoachingInteraction) *Analytics {
	out := &Analytics{
		Analytics: AnalyticsSummary{
			TotalInteractions:   len(interactions),
			InteractionTypes:    map[models.InteractionType]int{},
			AverageSatisfaction: 0,
		},
		Interactions: make([]InteractionSummary, 0, len(interactions)),
	}

	var timed, timedTotal, rated, ratedTotal int
	for _, in := range interactions {
		out.Analytics.InteractionTypes[in.InteractionType]++
		if in.ResponseTime != nil {
			timed++
			timedTotal += *in.ResponseTime
		}
		if in.UserSatisfaction != nil {
			rated++
			ratedTotal += *in.UserSatisfaction
		}
		if in.Context.AdaptationMade {
			out.Analytics.AdaptationsMade++
		}
		out.Interactions = append(out.Interactions, InteractionSummary{
			ID:           in.ID,
			Type:         in.InteractionType,
			Timestamp:    in.Timestamp,
			ResponseTime: in.ResponseTime,
			Satisfaction: in.UserSatisfaction,
		})
	}

	if timed > 0 {
		out.Analytics.AverageResponseTime = int(math.Floor(float64(timedTotal)/float64(timed) + 0.5))
	}
	if rated > 0 {
		out.Analytics.AverageSatisfaction = strconv.FormatFloat(float64(ratedTotal)/float64(rated), 'f', 1, 64)
	}
	return out
}
