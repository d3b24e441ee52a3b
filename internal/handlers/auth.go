package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/request"
	"github.com/benvon/cookmate/internal/services/auth"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AuthService is the account surface the auth routes use
type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	AccessTTL() time.Duration
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	auth         AuthService
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler. secureCookie marks the jwt cookie Secure.
func NewAuthHandler(svc AuthService, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, secureCookie: secureCookie, logger: logger}
}

// RegisterPublicRoutes registers the routes that need no token
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/signup", h.Signup).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
}

// RegisterRoutes registers the authenticated auth routes
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// RefreshRequest exchanges a refresh token for new tokens
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Signup creates an account and signs the user in
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		respondServiceError(w, r, h.logger, "signup", err)
		return
	}

	sess, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, h.logger, "signup", err)
		return
	}
	h.setTokenCookie(w, sess.Tokens.AccessToken)
	respondJSON(w, http.StatusCreated, sess)
}

// Login signs a user in with email and password
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		respondServiceError(w, r, h.logger, "login", err)
		return
	}

	sess, err := h.auth.Login(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, h.logger, "login", err)
		return
	}
	h.setTokenCookie(w, sess.Tokens.AccessToken)
	respondJSON(w, http.StatusOK, sess)
}

// Refresh issues new tokens for a valid refresh token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "refresh", err)
		return
	}

	sess, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, r, h.logger, "refresh", err)
		return
	}
	h.setTokenCookie(w, sess.Tokens.AccessToken)
	respondJSON(w, http.StatusOK, sess)
}

// Logout clears the token cookie. Bearer tokens simply expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     request.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     request.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.AccessTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
