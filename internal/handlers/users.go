package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/request"
	"github.com/benvon/cookmate/internal/services/progress"
	"github.com/benvon/cookmate/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ProgressService is the aggregator surface the user routes use
type ProgressService interface {
	GetOverview(ctx context.Context, userID uuid.UUID) (*progress.Overview, error)
	GetStats(ctx context.Context, userID uuid.UUID, periodDays int) (*progress.StatsReport, error)
	GetRecipeProgress(ctx context.Context, userID uuid.UUID, recipeID string) (*progress.RecipeProgress, error)
	GetAchievements(ctx context.Context, user *models.User) (*progress.Achievements, error)
}

// PasswordChecker confirms a user's password before destructive actions
type PasswordChecker interface {
	CheckPassword(user *models.User, password string) bool
}

// UserHandler handles profile, progress and account requests
type UserHandler struct {
	users        database.UserRepositoryInterface
	sessions     database.SessionRepositoryInterface
	interactions database.InteractionRepositoryInterface
	progressRepo database.ProgressRepositoryInterface
	progress     ProgressService
	passwords    PasswordChecker
	logger       *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	users database.UserRepositoryInterface,
	sessions database.SessionRepositoryInterface,
	interactions database.InteractionRepositoryInterface,
	progressRepo database.ProgressRepositoryInterface,
	progressSvc ProgressService,
	passwords PasswordChecker,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		users:        users,
		sessions:     sessions,
		interactions: interactions,
		progressRepo: progressRepo,
		progress:     progressSvc,
		passwords:    passwords,
		logger:       logger,
	}
}

// RegisterRoutes registers user routes on the given router
// The router should already have the /api/v1/users prefix
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	r.HandleFunc("/preferences", h.UpdatePreferences).Methods("PUT")
	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/{recipeId}", h.GetRecipeProgress).Methods("GET")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/achievements", h.GetAchievements).Methods("GET")
	r.HandleFunc("/account", h.DeleteAccount).Methods("DELETE")
	r.HandleFunc("/export", h.Export).Methods("GET")
}

// UpdateProfileRequest changes the display name or skill level
type UpdateProfileRequest struct {
	Name       *string            `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	SkillLevel *models.SkillLevel `json:"skillLevel,omitempty" validate:"omitempty,skill_level"`
}

// VoiceSettingsUpdate changes text-to-speech playback
type VoiceSettingsUpdate struct {
	Speed *float64 `json:"speed,omitempty" validate:"omitempty,min=0.5,max=2"`
	Voice *string  `json:"voice,omitempty" validate:"omitempty,max=50"`
}

// UpdatePreferencesRequest replaces the given preference lists; omitted ones are kept
type UpdatePreferencesRequest struct {
	DietaryRestrictions []string             `json:"dietaryRestrictions,omitempty" validate:"max=50,dive,max=100"`
	CuisinePreferences  []string             `json:"cuisinePreferences,omitempty" validate:"max=50,dive,max=100"`
	CookingGoals        []string             `json:"cookingGoals,omitempty" validate:"max=50,dive,max=200"`
	VoiceSettings       *VoiceSettingsUpdate `json:"voiceSettings,omitempty"`
}

// DeleteAccountRequest confirms account deactivation
type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// UserExport is everything stored about a user
type UserExport struct {
	User         *models.User                  `json:"user"`
	Sessions     []*models.CookingSession      `json:"sessions"`
	Interactions []*models.CoachingInteraction `json:"interactions"`
	Progress     []*models.UserProgress        `json:"progress"`
	ExportedAt   time.Time                     `json:"exportedAt"`
}

// GetProfile returns the signed-in user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile changes name or skill level
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "update_profile", err)
		return
	}
	if req.Name != nil {
		name := validation.SanitizeText(*req.Name)
		req.Name = &name
	}
	if req.Name != nil && *req.Name == "" {
		respondServiceError(w, r, h.logger, "update_profile", apperr.NewValidationError("name", "is required"))
		return
	}
	if err := validation.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, "update_profile", err)
		return
	}
	if req.Name == nil && req.SkillLevel == nil {
		respondServiceError(w, r, h.logger, "update_profile", apperr.NewValidationError("body", "at least one field is required"))
		return
	}

	updated := *user
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.SkillLevel != nil {
		updated.SkillLevel = *req.SkillLevel
	}
	if err := h.users.Update(r.Context(), &updated); err != nil {
		respondServiceError(w, r, h.logger, "update_profile", err)
		return
	}
	respondJSON(w, http.StatusOK, &updated)
}

// UpdatePreferences merges preference changes into the stored preferences
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req UpdatePreferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "update_preferences", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, "update_preferences", err)
		return
	}

	updated := *user
	updated.Preferences = mergePreferences(user.Preferences, req)
	if err := h.users.Update(r.Context(), &updated); err != nil {
		respondServiceError(w, r, h.logger, "update_preferences", err)
		return
	}
	respondJSON(w, http.StatusOK, updated.Preferences)
}

func mergePreferences(p models.Preferences, req UpdatePreferencesRequest) models.Preferences {
	if req.DietaryRestrictions != nil {
		p.DietaryRestrictions = req.DietaryRestrictions
	}
	if req.CuisinePreferences != nil {
		p.CuisinePreferences = req.CuisinePreferences
	}
	if req.CookingGoals != nil {
		p.CookingGoals = req.CookingGoals
	}
	if req.VoiceSettings != nil {
		if req.VoiceSettings.Speed != nil {
			p.VoiceSettings.Speed = *req.VoiceSettings.Speed
		}
		if req.VoiceSettings.Voice != nil {
			p.VoiceSettings.Voice = *req.VoiceSettings.Voice
		}
	}
	return p
}

// GetProgress returns the progress overview
func (h *UserHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	overview, err := h.progress.GetOverview(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_progress", err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// GetRecipeProgress returns progress and recent sessions for one recipe
func (h *UserHandler) GetRecipeProgress(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	recipeID := mux.Vars(r)["recipeId"]
	if recipeID == "" || len(recipeID) > 100 {
		respondServiceError(w, r, h.logger, "get_recipe_progress", apperr.NewValidationError("recipeId", "must be 1 to 100 characters"))
		return
	}

	rp, err := h.progress.GetRecipeProgress(r.Context(), user.ID, recipeID)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_recipe_progress", err)
		return
	}
	respondJSON(w, http.StatusOK, rp)
}

// GetStats returns cooking statistics for ?period days
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	stats, err := h.progress.GetStats(r.Context(), user.ID, queryInt(r, "period", 0))
	if err != nil {
		respondServiceError(w, r, h.logger, "get_stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetAchievements returns unlocked and locked achievements
func (h *UserHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	achievements, err := h.progress.GetAchievements(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_achievements", err)
		return
	}
	respondJSON(w, http.StatusOK, achievements)
}

// DeleteAccount deactivates the account after confirming the password. Rows are kept.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req DeleteAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "delete_account", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, "delete_account", err)
		return
	}
	if !h.passwords.CheckPassword(user, req.Password) {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Password is incorrect")
		return
	}

	if err := h.users.Deactivate(r.Context(), user.ID); err != nil {
		respondServiceError(w, r, h.logger, "delete_account", err)
		return
	}
	h.logger.Info("account_deactivated", zap.String("user_id", logger.SanitizeUserID(user.ID.String())))

	http.SetCookie(w, &http.Cookie{Name: request.TokenCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Account deactivated"})
}

// Export returns the user's profile, sessions, interactions and progress
func (h *UserHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	export, err := h.buildExport(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, h.logger, "export_user_data", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cookmate-export-%s.json"`, time.Now().UTC().Format(time.DateOnly)))
	respondJSON(w, http.StatusOK, export)
}

func (h *UserHandler) buildExport(ctx context.Context, user *models.User) (*UserExport, error) {
	active, err := h.sessions.ListActive(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	completed, err := h.sessions.ListCompleted(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed sessions: %w", err)
	}
	interactions, err := h.interactions.ListSince(ctx, user.ID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	records, err := h.progressRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	all := make([]*models.CookingSession, 0, len(active)+len(completed))
	all = append(all, active...)
	all = append(all, completed...)
	if interactions == nil {
		interactions = []*models.CoachingInteraction{}
	}
	if records == nil {
		records = []*models.UserProgress{}
	}
	return &UserExport{
		User:         user,
		Sessions:     all,
		Interactions: interactions,
		Progress:     records,
		ExportedAt:   time.Now().UTC(),
	}, nil
}
