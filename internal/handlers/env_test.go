package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/logger"
	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/internal/store"
	"github.com/incidentdesk/apiserver/types"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]types.User
}

func (m *memUsers) List(ctx context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = uuid.NewString()
	m.users[user.ID] = user
	return user, nil
}

func (m *memUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memUsers) Delete(ctx context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	delete(m.users, id)
	return u, nil
}

type memIncidents struct {
	mu        sync.Mutex
	incidents map[string]types.Incident
}

func (m *memIncidents) List(ctx context.Context, from, to time.Time) ([]types.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Incident, 0)
	for _, i := range m.incidents {
		if !from.IsZero() && i.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && i.OccurredAt.After(to) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].OccurredAt.After(out[b].OccurredAt) })
	return out, nil
}

func (m *memIncidents) Get(ctx context.Context, id string) (types.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.incidents[id]
	if !ok {
		return types.Incident{}, store.ErrNotFound
	}
	return i, nil
}

func (m *memIncidents) Create(ctx context.Context, incident types.Incident) (types.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident.ID = uuid.NewString()
	if incident.OccurredAt.IsZero() {
		incident.OccurredAt = time.Now().UTC()
	}
	m.incidents[incident.ID] = incident
	return incident, nil
}

func (m *memIncidents) Update(ctx context.Context, incident types.Incident) (types.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incidents[incident.ID]; !ok {
		return types.Incident{}, store.ErrNotFound
	}
	m.incidents[incident.ID] = incident
	return incident, nil
}

func (m *memIncidents) Delete(ctx context.Context, id string) (types.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.incidents[id]
	if !ok {
		return types.Incident{}, store.ErrNotFound
	}
	delete(m.incidents, id)
	return i, nil
}

type memAudit struct {
	mu      sync.Mutex
	records []types.AuditRecord
	failErr error
}

func (m *memAudit) Append(ctx context.Context, record types.AuditRecord) (types.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return types.AuditRecord{}, m.failErr
	}
	record.ID = uuid.NewString()
	m.records = append(m.records, record)
	return record, nil
}

func (m *memAudit) List(ctx context.Context, filter types.AuditFilter) ([]types.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AuditRecord, 0)
	for _, r := range m.records {
		if filter.ResourceID != "" && r.ResourceID != filter.ResourceID {
			continue
		}
		if filter.ResourceType != "" && r.ResourceType != filter.ResourceType {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Timestamp.After(out[b].Timestamp) })
	return out, nil
}

func (m *memAudit) ListOlderThan(ctx context.Context, cutoff time.Time) ([]types.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AuditRecord, 0)
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAudit) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *memAudit) all() []types.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AuditRecord(nil), m.records...)
}

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires the handlers the way the server does, on in-memory stores.
type testEnv struct {
	router    http.Handler
	users     *memUsers
	incidents *memIncidents
	audit     *memAudit
	userSvc   *services.UserService
	tokens    *auth.TokenService
	clock     *mutableClock
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimit(t, LoginLimit{PerMinute: 600, Burst: 100})
}

func newTestEnvWithLimit(t *testing.T, limit LoginLimit) *testEnv {
	t.Helper()

	env := &testEnv{
		users:     &memUsers{users: make(map[string]types.User)},
		incidents: &memIncidents{incidents: make(map[string]types.Incident)},
		audit:     &memAudit{},
		clock:     &mutableClock{now: time.Now().UTC().Truncate(time.Second)},
	}

	tokens, err := auth.NewTokenService(testAccessSecret, testRefreshSecret, auth.NewMemoryRefreshStore(),
		auth.WithClock(env.clock.Now),
	)
	require.NoError(t, err)
	env.tokens = tokens
	env.userSvc = services.NewUserService(env.users)

	auditSvc := services.NewAuditService(env.audit, env.users, services.WithAuditLogger(logger.Discard()))
	incidentSvc := services.NewIncidentService(env.incidents)
	gate := NewGate(tokens)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, env.userSvc, tokens, auditSvc, gate, limit)
	})
	r.Route("/users", func(r chi.Router) {
		UserRouter(r, env.userSvc, auditSvc, gate)
	})
	r.Route("/incidents", func(r chi.Router) {
		IncidentRouter(r, incidentSvc, auditSvc, gate)
	})
	r.Route("/history", func(r chi.Router) {
		HistoryRouter(r, auditSvc, gate)
	})
	env.router = r
	return env
}

func (e *testEnv) seedUser(t *testing.T, name, email, secret, role string) types.User {
	t.Helper()
	user, err := e.userSvc.Register(context.Background(), services.RegisterInput{
		Name: name, Email: email, Password: secret, Role: role,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) accessToken(t *testing.T, user types.User) string {
	t.Helper()
	token, err := e.tokens.IssueAccessToken(user.ID, user.Role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}
