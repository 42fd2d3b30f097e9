package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/incidentdesk/apiserver/types"
)

// IncidentRepository defines persistence operations for incidents.
type IncidentRepository interface {
	List(ctx context.Context, from, to time.Time) ([]types.Incident, error)
	Get(ctx context.Context, id string) (types.Incident, error)
	Create(ctx context.Context, incident types.Incident) (types.Incident, error)
	Update(ctx context.Context, incident types.Incident) (types.Incident, error)
	Delete(ctx context.Context, id string) (types.Incident, error)
}

// IncidentService encapsulates incident use-cases.
type IncidentService struct {
	repo IncidentRepository
}

func NewIncidentService(repo IncidentRepository) *IncidentService {
	return &IncidentService{repo: repo}
}

// List returns incidents that occurred within [from, to]. Zero bounds are open.
func (s *IncidentService) List(ctx context.Context, from, to time.Time) ([]types.Incident, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: 'to' must not be before 'from'", ErrValidation)
	}
	return s.repo.List(ctx, from, to)
}

func (s *IncidentService) Get(ctx context.Context, id string) (types.Incident, error) {
	return s.repo.Get(ctx, id)
}

func (s *IncidentService) Create(ctx context.Context, incident types.Incident) (types.Incident, error) {
	incident.ID = ""
	if err := normalizeIncident(&incident); err != nil {
		return types.Incident{}, err
	}
	return s.repo.Create(ctx, incident)
}

// Update replaces the incident stored under id. Fields left empty keep their
// stored value.
func (s *IncidentService) Update(ctx context.Context, id string, patch types.Incident) (types.Incident, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Incident{}, err
	}

	if v := strings.TrimSpace(patch.ReportNumber); v != "" {
		current.ReportNumber = v
	}
	if v := strings.TrimSpace(patch.Type); v != "" {
		current.Type = v
	}
	if v := strings.TrimSpace(patch.Description); v != "" {
		current.Description = v
	}
	if v := strings.TrimSpace(patch.Line); v != "" {
		current.Line = v
	}
	if v := strings.TrimSpace(patch.Station); v != "" {
		current.Station = v
	}
	if !patch.OccurredAt.IsZero() {
		current.OccurredAt = patch.OccurredAt
	}
	if v := strings.TrimSpace(patch.Status); v != "" {
		current.Status = v
	}
	if err := normalizeIncident(&current); err != nil {
		return types.Incident{}, err
	}

	return s.repo.Update(ctx, current)
}

// Delete removes the incident and returns the deleted row.
func (s *IncidentService) Delete(ctx context.Context, id string) (types.Incident, error) {
	return s.repo.Delete(ctx, id)
}

func normalizeIncident(incident *types.Incident) error {
	incident.ReportNumber = strings.TrimSpace(incident.ReportNumber)
	incident.Type = strings.TrimSpace(incident.Type)
	incident.Description = strings.TrimSpace(incident.Description)
	incident.Line = strings.TrimSpace(incident.Line)
	incident.Station = strings.TrimSpace(incident.Station)
	incident.Status = strings.TrimSpace(incident.Status)

	if incident.ReportNumber == "" || incident.Type == "" || incident.Description == "" {
		return fmt.Errorf("%w: reportNumber, type and description are required", ErrValidation)
	}
	if incident.Status == "" {
		incident.Status = types.IncidentPending
	}
	if !types.ValidIncidentStatus(incident.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, incident.Status)
	}
	return nil
}
