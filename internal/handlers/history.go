package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/types"
)

// HistoryHandler exposes the audit log to administrators.
type HistoryHandler struct {
	auditService *services.AuditService
	now          func() time.Time
}

func NewHistoryHandler(auditService *services.AuditService) *HistoryHandler {
	return &HistoryHandler{auditService: auditService, now: time.Now}
}

// HistoryRouter registers audit log routes. Every route requires the admin role.
func HistoryRouter(r chi.Router, auditService *services.AuditService, gate *Gate) {
	handler := NewHistoryHandler(auditService)

	r.Use(gate.Admin())
	r.Get("/", handler.ListHistory)
	r.Post("/", handler.CreateHistory)
	r.Delete("/clean", handler.CleanHistory)
}

func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	records, err := h.auditService.List(r.Context(), types.AuditFilter{
		ResourceID:   query.Get("resourceId"),
		ResourceType: query.Get("resourceType"),
	})
	if err != nil {
		writeServiceError(w, r, err, "list history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// CreateHistory appends a manually supplied audit record.
func (h *HistoryHandler) CreateHistory(w http.ResponseWriter, r *http.Request) {
	var req HistoryRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "record history")
		return
	}

	if _, err := h.auditService.RecordManual(r.Context(), types.AuditRecord{
		ResourceID:   req.ResourceID,
		ResourceType: req.ResourceType,
		Action:       req.Action,
		Description:  req.Description,
		Actor:        req.Actor,
	}); err != nil {
		writeServiceError(w, r, err, "record history")
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "history recorded"})
}

// CleanHistory purges records older than now minus months and days.
func (h *HistoryHandler) CleanHistory(w http.ResponseWriter, r *http.Request) {
	months, err := parseCountParam(r, "months")
	if err != nil {
		writeServiceError(w, r, err, "clean history")
		return
	}
	days, err := parseCountParam(r, "days")
	if err != nil {
		writeServiceError(w, r, err, "clean history")
		return
	}

	cutoff, err := services.Cutoff(h.now(), months, days)
	if err != nil {
		writeServiceError(w, r, err, "clean history")
		return
	}

	deleted, err := h.auditService.PurgeOlderThan(r.Context(), cutoff)
	if err != nil {
		writeServiceError(w, r, err, "clean history")
		return
	}
	writeJSON(w, http.StatusOK, CleanHistoryResponse{DeletedCount: deleted})
}

func parseCountParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid '%s' value", services.ErrValidation, name)
	}
	return n, nil
}

type HistoryRequest struct {
	ResourceID   string `json:"resourceId" validate:"required"`
	ResourceType string `json:"resourceType" validate:"required"`
	Action       string `json:"action" validate:"required"`
	Description  string `json:"description"`
	Actor        string `json:"actor" validate:"required"`
}

type CleanHistoryResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}
