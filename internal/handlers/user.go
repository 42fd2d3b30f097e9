package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/types"
)

// UserHandler provides admin account management.
type UserHandler struct {
	userService *services.UserService
	audit       AuditRecorder
}

func NewUserHandler(userService *services.UserService, audit AuditRecorder) *UserHandler {
	return &UserHandler{userService: userService, audit: audit}
}

// UserRouter registers user routes. Every route requires the admin role.
func UserRouter(r chi.Router, userService *services.UserService, audit AuditRecorder, gate *Gate) {
	handler := NewUserHandler(userService, audit)

	r.Use(gate.Admin())
	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err, "fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	createUser(w, r, h.userService, h.audit)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "update user")
		return
	}

	user, err := h.userService.Update(r.Context(), chi.URLParam(r, "userID"), services.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Password: req.Secret,
	})
	if err != nil {
		writeServiceError(w, r, err, "update user")
		return
	}

	h.record(r, user.ID, types.ActionEdit, fmt.Sprintf("User %s edited.", user.Name))
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Delete(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err, "delete user")
		return
	}

	h.record(r, user.ID, types.ActionDeletion, fmt.Sprintf("User %s deleted.", user.Name))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "user deleted"})
}

func (h *UserHandler) record(r *http.Request, userID, action, description string) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	h.audit.Record(r.Context(), services.AuditEntry{
		ResourceID:   userID,
		ResourceType: types.ResourceUser,
		Action:       action,
		Description:  description,
		ActorID:      principal.ID,
	})
}

type UpdateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email" validate:"omitempty,email"`
	Role   string `json:"role" validate:"omitempty,oneof=usuario admin"`
	Secret string `json:"secret"`
}
