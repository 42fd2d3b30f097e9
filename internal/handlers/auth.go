package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/logger"
	"github.com/incidentdesk/apiserver/internal/metrics"
	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/internal/store"
	"github.com/incidentdesk/apiserver/types"
)

// AuditRecorder writes one audit record for a committed mutation. It never
// reports failure to the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry services.AuditEntry)
}

// LoginLimit bounds login attempts per client IP.
type LoginLimit struct {
	PerMinute int
	Burst     int
}

// AuthHandler provides login, token renewal and logout endpoints.
type AuthHandler struct {
	userService *services.UserService
	tokens      *auth.TokenService
	audit       AuditRecorder
}

func NewAuthHandler(userService *services.UserService, tokens *auth.TokenService, audit AuditRecorder) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
		audit:       audit,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	userService *services.UserService,
	tokens *auth.TokenService,
	audit AuditRecorder,
	gate *Gate,
	limit LoginLimit,
) {
	handler := NewAuthHandler(userService, tokens, audit)
	limiter := newIPRateLimiter(limit.PerMinute, limit.Burst)

	r.With(limiter.middleware).Post("/login", handler.Login)
	r.Post("/token", handler.Token)
	r.Post("/logout", handler.Logout)
	r.With(gate.Admin()).Post("/register", handler.Register)
	r.With(gate.Authenticate).Get("/me", handler.Me)
}

// Login verifies credentials and returns an access and refresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		metrics.LoginsTotal.WithLabelValues("bad_request").Inc()
		writeServiceError(w, r, err, "log in")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		case errors.Is(err, services.ErrValidation):
			metrics.LoginsTotal.WithLabelValues("bad_request").Inc()
		default:
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		writeServiceError(w, r, err, "log in")
		return
	}

	pair, err := h.tokens.IssueTokens(r.Context(), user.ID, user.Role)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		writeServiceError(w, r, err, "issue tokens")
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	logger.FromContext(r.Context(), nil).Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Principal:    user,
	})
}

// Token exchanges a live refresh token for a new access token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "refresh token")
		return
	}

	access, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRevokedToken):
			writeError(w, http.StatusForbidden, codeRevokedToken, "refresh token is not active")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingClaims):
			writeError(w, http.StatusForbidden, codeInvalidToken, "invalid or expired refresh token")
		default:
			writeServiceError(w, r, err, "refresh token")
		}
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: access})
}

// Logout revokes the presented refresh token. Unknown tokens succeed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "log out")
		return
	}

	if err := h.tokens.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, r, err, "log out")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Register creates an account. Mounted behind the admin gate.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	createUser(w, r, h.userService, h.audit)
}

// Me returns the account of the authenticated principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeInvalidToken, "authentication required")
		return
	}

	user, err := h.userService.GetByID(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "account no longer exists")
			return
		}
		writeServiceError(w, r, err, "load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// createUser backs both POST /auth/register and POST /users.
func createUser(w http.ResponseWriter, r *http.Request, userService *services.UserService, audit AuditRecorder) {
	var req RegisterRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "create user")
		return
	}

	user, err := userService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Secret,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, err, "create user")
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	audit.Record(r.Context(), services.AuditEntry{
		ResourceID:   user.ID,
		ResourceType: types.ResourceUser,
		Action:       types.ActionCreation,
		Description:  fmt.Sprintf("User %s created with role %s.", user.Name, user.Role),
		ActorID:      principal.ID,
	})

	writeJSON(w, http.StatusCreated, CreatedResponse{Message: "user created", ID: user.ID})
}

type LoginRequest struct {
	Email  string `json:"email" validate:"required"`
	Secret string `json:"secret" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	Principal    types.User `json:"principal"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type RegisterRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=usuario admin"`
}

type CreatedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}
