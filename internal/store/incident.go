package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/incidentdesk/apiserver/types"
)

// IncidentRepository handles persistence for incidents.
type IncidentRepository struct {
	db *sql.DB
}

func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

const incidentColumns = `id, report_number, type, description, line, station, occurred_at, status, created_at, updated_at`

func scanIncident(row interface{ Scan(...any) error }) (types.Incident, error) {
	var incident types.Incident
	err := row.Scan(
		&incident.ID,
		&incident.ReportNumber,
		&incident.Type,
		&incident.Description,
		&incident.Line,
		&incident.Station,
		&incident.OccurredAt,
		&incident.Status,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	return incident, err
}

// List returns incidents ordered by occurrence, newest first. A zero from or
// to leaves that side of the range open.
func (r *IncidentRepository) List(ctx context.Context, from, to time.Time) ([]types.Incident, error) {
	var (
		conditions []string
		args       []any
	)
	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY occurred_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]types.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *IncidentRepository) Get(ctx context.Context, id string) (types.Incident, error) {
	const query = `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	incident, err := scanIncident(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Incident{}, ErrNotFound
		}
		return types.Incident{}, err
	}
	return incident, nil
}

func (r *IncidentRepository) Create(ctx context.Context, incident types.Incident) (types.Incident, error) {
	now := time.Now().UTC()
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.OccurredAt.IsZero() {
		incident.OccurredAt = now
	}
	incident.CreatedAt = now
	incident.UpdatedAt = now

	const query = `
		INSERT INTO incidents (id, report_number, type, description, line, station, occurred_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		incident.ID,
		incident.ReportNumber,
		incident.Type,
		incident.Description,
		incident.Line,
		incident.Station,
		incident.OccurredAt,
		incident.Status,
		incident.CreatedAt,
		incident.UpdatedAt,
	); err != nil {
		return types.Incident{}, translateError(err)
	}
	return incident, nil
}

func (r *IncidentRepository) Update(ctx context.Context, incident types.Incident) (types.Incident, error) {
	incident.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE incidents
		SET report_number = $1,
			type = $2,
			description = $3,
			line = $4,
			station = $5,
			occurred_at = $6,
			status = $7,
			updated_at = $8
		WHERE id = $9
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		incident.ReportNumber,
		incident.Type,
		incident.Description,
		incident.Line,
		incident.Station,
		incident.OccurredAt,
		incident.Status,
		incident.UpdatedAt,
		incident.ID,
	).Scan(&incident.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Incident{}, ErrNotFound
		}
		return types.Incident{}, translateError(err)
	}
	return incident, nil
}

func (r *IncidentRepository) Delete(ctx context.Context, id string) (types.Incident, error) {
	const query = `DELETE FROM incidents WHERE id = $1 RETURNING ` + incidentColumns
	incident, err := scanIncident(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Incident{}, ErrNotFound
		}
		return types.Incident{}, err
	}
	return incident, nil
}
