package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SessionLookup checks that a session exists and belongs to the user
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*models.CookingSession, error)
}

// RealtimeHandler streams session events over server-sent events
type RealtimeHandler struct {
	hub      *realtime.Hub
	sessions SessionLookup
	logger   *zap.Logger
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(hub *realtime.Hub, sessions SessionLookup, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, sessions: sessions, logger: logger}
}

// RegisterRoutes registers realtime routes on the given router
// The router should already have the /api/v1/realtime prefix
func (h *RealtimeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sessions/{id}", h.StreamSession).Methods("GET")
}

// StreamSession subscribes the caller to session:{id} until the connection closes
func (h *RealtimeHandler) StreamSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "stream_session", err)
		return
	}
	if _, err := h.sessions.GetSession(r.Context(), id, user.ID); err != nil {
		respondServiceError(w, r, h.logger, "stream_session", err)
		return
	}

	client := h.hub.NewClient(user.ID)
	defer h.hub.CloseClient(client)
	h.hub.Subscribe(client, realtime.SessionTopic(id))

	h.logger.Debug("realtime_stream_opened",
		zap.String("session_id", id.String()),
		zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
	)
	h.hub.ServeSSE(w, r, client)
	h.logger.Debug("realtime_stream_closed", zap.String("session_id", id.String()))
}
