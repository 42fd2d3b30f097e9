package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentdesk/apiserver/types"
)

var auditRowColumns = []string{"id", "resource_id", "resource_type", "action", "description", "actor", "timestamp"}

func TestAuditRepository_Append(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), "u2", types.ResourceUser, types.ActionDeletion, "User Bo deleted.", "Ana", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record, err := repo.Append(context.Background(), types.AuditRecord{
		ResourceID:   "u2",
		ResourceType: types.ResourceUser,
		Action:       types.ActionDeletion,
		Description:  "User Bo deleted.",
		Actor:        "Ana",
		Timestamp:    ts,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Append_Error(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errors.New("connection reset"))

	_, err := repo.Append(context.Background(), types.AuditRecord{})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_List_Filtered(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)
	ts := time.Now()

	mock.ExpectQuery("SELECT .* FROM audit_log WHERE resource_id = \\$1 AND resource_type = \\$2 ORDER BY timestamp DESC").
		WithArgs("i1", types.ResourceIncident).
		WillReturnRows(sqlmock.NewRows(auditRowColumns).
			AddRow("a2", "i1", types.ResourceIncident, types.ActionEdit, "edited", "Ana", ts).
			AddRow("a1", "i1", types.ResourceIncident, types.ActionCreation, "created", "Ana", ts.Add(-time.Hour)))

	records, err := repo.List(context.Background(), types.AuditFilter{ResourceID: "i1", ResourceType: types.ResourceIncident})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a2", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_List_All(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery("SELECT .* FROM audit_log ORDER BY timestamp DESC").
		WillReturnRows(sqlmock.NewRows(auditRowColumns))

	records, err := repo.List(context.Background(), types.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_DeleteOlderThan_StrictCutoff(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListOlderThan(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM audit_log WHERE timestamp < \\$1 ORDER BY timestamp").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(auditRowColumns).
			AddRow("a1", "i1", types.ResourceIncident, types.ActionCreation, "created", "Ana", cutoff.Add(-time.Hour)))

	records, err := repo.ListOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
