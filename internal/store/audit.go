package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/incidentdesk/apiserver/types"
)

// AuditRepository persists the append-only audit log. It exposes no update.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `id, resource_id, resource_type, action, description, actor, timestamp`

func (r *AuditRepository) Append(ctx context.Context, record types.AuditRecord) (types.AuditRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO audit_log (id, resource_id, resource_type, action, description, actor, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.ResourceID,
		record.ResourceType,
		record.Action,
		record.Description,
		record.Actor,
		record.Timestamp,
	); err != nil {
		return types.AuditRecord{}, err
	}
	return record, nil
}

// List returns matching records, most recent first.
func (r *AuditRepository) List(ctx context.Context, filter types.AuditFilter) ([]types.AuditRecord, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ResourceID != "" {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if filter.ResourceType != "" {
		args = append(args, filter.ResourceType)
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", len(args)))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY timestamp DESC`

	return r.query(ctx, query, args...)
}

// ListOlderThan returns records with a timestamp strictly before cutoff.
func (r *AuditRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]types.AuditRecord, error) {
	const query = `SELECT ` + auditColumns + ` FROM audit_log WHERE timestamp < $1 ORDER BY timestamp`
	return r.query(ctx, query, cutoff)
}

// DeleteOlderThan removes records with a timestamp strictly before cutoff.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *AuditRepository) query(ctx context.Context, query string, args ...any) ([]types.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.AuditRecord, 0)
	for rows.Next() {
		var record types.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.ResourceID,
			&record.ResourceType,
			&record.Action,
			&record.Description,
			&record.Actor,
			&record.Timestamp,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
