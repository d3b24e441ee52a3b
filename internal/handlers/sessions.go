package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/services/sessions"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SessionService is the orchestrator surface the session routes use
type SessionService interface {
	StartSession(ctx context.Context, user *models.User, in sessions.StartSessionInput) (*models.CookingSession, error)
	GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*models.CookingSession, error)
	UpdateSession(ctx context.Context, sessionID, userID uuid.UUID, update models.SessionUpdate) (*models.CookingSession, error)
	EndSession(ctx context.Context, sessionID, userID uuid.UUID, feedback *models.SessionFeedback) (*sessions.EndResult, error)
	ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.CookingSession, error)
	ListSessionHistory(ctx context.Context, userID uuid.UUID, page, pageSize int) (*sessions.HistoryPage, error)
	StartTimer(ctx context.Context, sessionID, userID uuid.UUID, label string, seconds int) (*models.CookingTimer, error)
	GetTimer(ctx context.Context, sessionID, userID uuid.UUID, timerID string) (*models.CookingTimer, int, error)
	CancelTimer(ctx context.Context, sessionID, userID uuid.UUID, timerID string) error
}

// SessionHandler handles cooking session requests
type SessionHandler struct {
	sessions SessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: svc, logger: logger}
}

// RegisterRoutes registers session routes on the given router
// The router should already have the /api/v1/sessions prefix
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/start", h.StartSession).Methods("POST")
	r.HandleFunc("/user/active", h.ListActive).Methods("GET")
	r.HandleFunc("/user/history", h.ListHistory).Methods("GET")
	r.HandleFunc("/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/{id}/update", h.UpdateSession).Methods("PUT")
	r.HandleFunc("/{id}/end", h.EndSession).Methods("DELETE")
	r.HandleFunc("/{id}/timers", h.StartTimer).Methods("POST")
	r.HandleFunc("/{id}/timers/{timerId}", h.GetTimer).Methods("GET")
	r.HandleFunc("/{id}/timers/{timerId}", h.CancelTimer).Methods("DELETE")
}

// EndSessionRequest is the optional body of DELETE /sessions/{id}/end
type EndSessionRequest struct {
	Feedback *models.SessionFeedback `json:"feedback,omitempty"`
}

// StartTimerRequest starts a named countdown in a session
type StartTimerRequest struct {
	Label   string `json:"label"`
	Seconds int    `json:"seconds"`
}

// TimerResponse is a timer with the seconds left on it
type TimerResponse struct {
	*models.CookingTimer
	Remaining int `json:"remaining"`
}

// StartSession creates a session for a recipe
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req sessions.StartSessionInput
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "start_session", err)
		return
	}

	session, err := h.sessions.StartSession(r.Context(), user, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "start_session", err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GetSession returns a session the user owns
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_session", err)
		return
	}

	session, err := h.sessions.GetSession(r.Context(), id, user.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_session", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// UpdateSession applies a partial update
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "update_session", err)
		return
	}

	var update models.SessionUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondServiceError(w, r, h.logger, "update_session", err)
		return
	}

	session, err := h.sessions.UpdateSession(r.Context(), id, user.ID, update)
	if err != nil {
		respondServiceError(w, r, h.logger, "update_session", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// EndSession completes a session, optionally with feedback
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "end_session", err)
		return
	}

	var req EndSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "end_session", err)
		return
	}

	result, err := h.sessions.EndSession(r.Context(), id, user.ID, req.Feedback)
	if err != nil {
		respondServiceError(w, r, h.logger, "end_session", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListActive returns the user's active and paused sessions
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	list, err := h.sessions.ListActiveSessions(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, "list_active_sessions", err)
		return
	}
	if list == nil {
		list = []*models.CookingSession{}
	}
	respondJSON(w, http.StatusOK, list)
}

// ListHistory returns a page of the user's sessions, newest first
func (h *SessionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", sessions.DefaultPageSize)
	history, err := h.sessions.ListSessionHistory(r.Context(), user.ID, page, limit)
	if err != nil {
		respondServiceError(w, r, h.logger, "list_session_history", err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// StartTimer starts a countdown timer in the session
func (h *SessionHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "start_timer", err)
		return
	}

	var req StartTimerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "start_timer", err)
		return
	}

	timer, err := h.sessions.StartTimer(r.Context(), id, user.ID, req.Label, req.Seconds)
	if err != nil {
		respondServiceError(w, r, h.logger, "start_timer", err)
		return
	}
	respondJSON(w, http.StatusCreated, TimerResponse{CookingTimer: timer, Remaining: timer.Duration})
}

// GetTimer reports the seconds left on a timer
func (h *SessionHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_timer", err)
		return
	}

	timer, remaining, err := h.sessions.GetTimer(r.Context(), id, user.ID, mux.Vars(r)["timerId"])
	if err != nil {
		respondServiceError(w, r, h.logger, "get_timer", err)
		return
	}
	respondJSON(w, http.StatusOK, TimerResponse{CookingTimer: timer, Remaining: remaining})
}

// CancelTimer stops a running timer
func (h *SessionHandler) CancelTimer(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "cancel_timer", err)
		return
	}

	if err := h.sessions.CancelTimer(r.Context(), id, user.ID, mux.Vars(r)["timerId"]); err != nil {
		respondServiceError(w, r, h.logger, "cancel_timer", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Timer cancelled"})
}
