package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/types"
)

const dateLayout = "2006-01-02"

// IncidentHandler provides HTTP handlers for incidents.
type IncidentHandler struct {
	incidentService *services.IncidentService
	audit           AuditRecorder
}

func NewIncidentHandler(incidentService *services.IncidentService, audit AuditRecorder) *IncidentHandler {
	return &IncidentHandler{incidentService: incidentService, audit: audit}
}

// IncidentRouter registers incident routes. Reads and creation are open to
// any authenticated user; edits and deletion require the admin role.
func IncidentRouter(r chi.Router, incidentService *services.IncidentService, audit AuditRecorder, gate *Gate) {
	handler := NewIncidentHandler(incidentService, audit)
	requireAdmin := gate.RequireRole(types.RoleAdmin)

	r.Use(gate.Authenticate)
	r.Get("/", handler.ListIncidents)
	r.Post("/", handler.CreateIncident)
	r.Route("/{incidentID}", func(r chi.Router) {
		r.Get("/", handler.GetIncident)
		r.With(requireAdmin).Put("/", handler.UpdateIncident)
		r.With(requireAdmin).Delete("/", handler.DeleteIncident)
	})
}

func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from", false)
	if err != nil {
		writeServiceError(w, r, err, "list incidents")
		return
	}
	to, err := parseTimeParam(r, "to", true)
	if err != nil {
		writeServiceError(w, r, err, "list incidents")
		return
	}

	incidents, err := h.incidentService.List(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, r, err, "list incidents")
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (h *IncidentHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.incidentService.Get(r.Context(), chi.URLParam(r, "incidentID"))
	if err != nil {
		writeServiceError(w, r, err, "fetch incident")
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentHandler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req IncidentRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "create incident")
		return
	}

	incident, err := h.incidentService.Create(r.Context(), req.toIncident())
	if err != nil {
		writeServiceError(w, r, err, "create incident")
		return
	}

	h.record(r, incident.ID, types.ActionCreation, fmt.Sprintf("New incident created with type: %s.", incident.Type))
	writeJSON(w, http.StatusCreated, incident)
}

func (h *IncidentHandler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req IncidentRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, r, err, "update incident")
		return
	}

	incident, err := h.incidentService.Update(r.Context(), chi.URLParam(r, "incidentID"), req.toIncident())
	if err != nil {
		writeServiceError(w, r, err, "update incident")
		return
	}

	h.record(r, incident.ID, types.ActionEdit, fmt.Sprintf("Incident %s was updated.", incident.ID))
	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentHandler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.incidentService.Delete(r.Context(), chi.URLParam(r, "incidentID"))
	if err != nil {
		writeServiceError(w, r, err, "delete incident")
		return
	}

	h.record(r, incident.ID, types.ActionDeletion, fmt.Sprintf("Incident %s was deleted.", incident.ID))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "incident deleted"})
}

func (h *IncidentHandler) record(r *http.Request, incidentID, action, description string) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	h.audit.Record(r.Context(), services.AuditEntry{
		ResourceID:   incidentID,
		ResourceType: types.ResourceIncident,
		Action:       action,
		Description:  description,
		ActorID:      principal.ID,
	})
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates. A plain date
// used as an upper bound covers the whole day.
func parseTimeParam(r *http.Request, name string, upper bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid '%s' date %q", services.ErrValidation, name, raw)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

type IncidentRequest struct {
	ReportNumber string    `json:"reportNumber"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	Line         string    `json:"line"`
	Station      string    `json:"station"`
	OccurredAt   time.Time `json:"occurredAt"`
	Status       string    `json:"status" validate:"omitempty,oneof=pending in_review resolved"`
}

func (req IncidentRequest) toIncident() types.Incident {
	return types.Incident{
		ReportNumber: req.ReportNumber,
		Type:         req.Type,
		Description:  req.Description,
		Line:         req.Line,
		Station:      req.Station,
		OccurredAt:   req.OccurredAt,
		Status:       req.Status,
	}
}
