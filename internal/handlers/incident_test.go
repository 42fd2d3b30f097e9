package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentdesk/apiserver/types"
)

func TestIncidents_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "Root", "root@example.com", "pw", types.RoleAdmin)
	plain := env.seedUser(t, "Ana", "ana@example.com", "pw", types.RoleUser)
	userToken := env.accessToken(t, plain)
	adminToken := env.accessToken(t, admin)

	rec := env.do(t, http.MethodPost, "/incidents", userToken, IncidentRequest{
		ReportNumber: "R-100",
		Type:         "delay",
		Description:  "Train held at platform",
		Line:         "L1",
		Station:      "Central",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created types.Incident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, types.IncidentPending, created.Status)

	records := env.audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, types.ActionCreation, records[0].Action)
	assert.Equal(t, types.ResourceIncident, records[0].ResourceType)
	assert.Equal(t, "Ana", records[0].Actor)

	rec = env.do(t, http.MethodPut, "/incidents/"+created.ID, userToken, IncidentRequest{Status: types.IncidentResolved})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, env.audit.all(), 1)

	rec = env.do(t, http.MethodPut, "/incidents/"+created.ID, adminToken, IncidentRequest{Status: types.IncidentResolved})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, env.audit.all(), 2)

	rec = env.do(t, http.MethodGet, "/incidents/"+created.ID, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"resolved"`)

	rec = env.do(t, http.MethodDelete, "/incidents/"+created.ID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/incidents/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	records = env.audit.all()
	require.Len(t, records, 3)
	assert.Equal(t, types.ActionDeletion, records[2].Action)
	assert.Equal(t, created.ID, records[2].ResourceID)

	rec = env.do(t, http.MethodGet, "/incidents/"+created.ID, userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIncidents_RequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/incidents", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeNoToken, decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, "/incidents", "garbage", IncidentRequest{ReportNumber: "R", Type: "t", Description: "d"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.audit.all())
}

func TestIncidents_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	plain := env.seedUser(t, "Ana", "ana@example.com", "pw", types.RoleUser)

	rec := env.do(t, http.MethodPost, "/incidents", env.accessToken(t, plain), IncidentRequest{Type: "delay"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.audit.all())
}

func TestIncidents_ListDateRange(t *testing.T) {
	env := newTestEnv(t)
	plain := env.seedUser(t, "Ana", "ana@example.com", "pw", types.RoleUser)
	token := env.accessToken(t, plain)

	for i, day := range []int{1, 10, 20} {
		rec := env.do(t, http.MethodPost, "/incidents", token, IncidentRequest{
			ReportNumber: "R-" + string(rune('A'+i)),
			Type:         "delay",
			Description:  "d",
			OccurredAt:   time.Date(2024, 3, day, 8, 0, 0, 0, time.UTC),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/incidents?from=2024-03-05&to=2024-03-20", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incidents []types.Incident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	require.Len(t, incidents, 2)
	assert.Equal(t, 20, incidents[0].OccurredAt.Day())
	assert.Equal(t, 10, incidents[1].OccurredAt.Day())

	rec = env.do(t, http.MethodGet, "/incidents?from=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/incidents?from=2024-03-20&to=2024-03-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
