package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/services/coach"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CoachService is the coaching engine surface the coach routes use
type CoachService interface {
	Ask(ctx context.Context, user *models.User, in coach.AskInput) (*coach.Result, error)
	StepGuidance(ctx context.Context, user *models.User, in coach.StepGuidanceInput) (*coach.Result, error)
	Tip(ctx context.Context, user *models.User, sessionID uuid.UUID) (*coach.Result, error)
	Troubleshoot(ctx context.Context, user *models.User, in coach.TroubleshootInput) (*coach.Result, error)
	Substitute(ctx context.Context, user *models.User, in coach.SubstituteInput) (*coach.Result, error)
	RecordFeedback(ctx context.Context, user *models.User, in coach.FeedbackInput) (*models.CoachingInteraction, error)
	GetAnalytics(ctx context.Context, user *models.User, sessionID uuid.UUID) (*coach.Analytics, error)
}

// CoachHandler handles AI coaching requests
type CoachHandler struct {
	coach  CoachService
	logger *zap.Logger
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(svc CoachService, logger *zap.Logger) *CoachHandler {
	return &CoachHandler{coach: svc, logger: logger}
}

// RegisterRoutes registers coach routes on the given router
// The router should already have the /api/v1/coach prefix
func (h *CoachHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ask", h.Ask).Methods("POST")
	r.HandleFunc("/step-guidance", h.StepGuidance).Methods("POST")
	r.HandleFunc("/tips/{sessionId}", h.Tip).Methods("GET")
	r.HandleFunc("/troubleshoot", h.Troubleshoot).Methods("POST")
	r.HandleFunc("/substitute", h.Substitute).Methods("POST")
	r.HandleFunc("/feedback", h.Feedback).Methods("POST")
	r.HandleFunc("/analytics/{sessionId}", h.Analytics).Methods("GET")
}

// Ask answers a free-form cooking question
func (h *CoachHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var in coach.AskInput
	h.handle(w, r, "coach_ask", &in, func(ctx context.Context, user *models.User) (any, error) {
		return h.coach.Ask(ctx, user, in)
	})
}

// StepGuidance explains a recipe step and moves the session to it
func (h *CoachHandler) StepGuidance(w http.ResponseWriter, r *http.Request) {
	var in coach.StepGuidanceInput
	h.handle(w, r, "coach_step_guidance", &in, func(ctx context.Context, user *models.User) (any, error) {
		return h.coach.StepGuidance(ctx, user, in)
	})
}

// Troubleshoot helps recover from a cooking problem
func (h *CoachHandler) Troubleshoot(w http.ResponseWriter, r *http.Request) {
	var in coach.TroubleshootInput
	h.handle(w, r, "coach_troubleshoot", &in, func(ctx context.Context, user *models.User) (any, error) {
		return h.coach.Troubleshoot(ctx, user, in)
	})
}

// Substitute suggests ingredient alternatives
func (h *CoachHandler) Substitute(w http.ResponseWriter, r *http.Request) {
	var in coach.SubstituteInput
	h.handle(w, r, "coach_substitute", &in, func(ctx context.Context, user *models.User) (any, error) {
		return h.coach.Substitute(ctx, user, in)
	})
}

// Feedback rates an earlier coaching response
func (h *CoachHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var in coach.FeedbackInput
	h.handle(w, r, "coach_feedback", &in, func(ctx context.Context, user *models.User) (any, error) {
		return h.coach.RecordFeedback(ctx, user, in)
	})
}

// Tip returns a contextual tip for the session's current step
func (h *CoachHandler) Tip(w http.ResponseWriter, r *http.Request) {
	h.handleSession(w, r, "coach_tip", func(ctx context.Context, user *models.User, id uuid.UUID) (any, error) {
		return h.coach.Tip(ctx, user, id)
	})
}

// Analytics summarizes the coaching interactions of a session
func (h *CoachHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	h.handleSession(w, r, "coach_analytics", func(ctx context.Context, user *models.User, id uuid.UUID) (any, error) {
		return h.coach.GetAnalytics(ctx, user, id)
	})
}

// handle decodes the body into in and runs call for the signed-in user
func (h *CoachHandler) handle(w http.ResponseWriter, r *http.Request, op string, in any, call func(context.Context, *models.User) (any, error)) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	if err := decodeJSON(r, in); err != nil {
		respondServiceError(w, r, h.logger, op, err)
		return
	}

	result, err := call(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, h.logger, op, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *CoachHandler) handleSession(w http.ResponseWriter, r *http.Request, op string, call func(context.Context, *models.User, uuid.UUID) (any, error)) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "sessionId")
	if err != nil {
		respondServiceError(w, r, h.logger, op, err)
		return
	}

	result, err := call(r.Context(), user, id)
	if err != nil {
		respondServiceError(w, r, h.logger, op, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
