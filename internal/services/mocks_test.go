package services

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/incidentdesk/apiserver/types"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) List(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]types.User), args.Error(1)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) (types.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.User), args.Error(1)
}

type mockIncidentRepository struct {
	mock.Mock
}

func (m *mockIncidentRepository) List(ctx context.Context, from, to time.Time) ([]types.Incident, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]types.Incident), args.Error(1)
}

func (m *mockIncidentRepository) Get(ctx context.Context, id string) (types.Incident, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Incident), args.Error(1)
}

func (m *mockIncidentRepository) Create(ctx context.Context, incident types.Incident) (types.Incident, error) {
	args := m.Called(ctx, incident)
	return args.Get(0).(types.Incident), args.Error(1)
}

func (m *mockIncidentRepository) Update(ctx context.Context, incident types.Incident) (types.Incident, error) {
	args := m.Called(ctx, incident)
	return args.Get(0).(types.Incident), args.Error(1)
}

func (m *mockIncidentRepository) Delete(ctx context.Context, id string) (types.Incident, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Incident), args.Error(1)
}

type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Append(ctx context.Context, record types.AuditRecord) (types.AuditRecord, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(types.AuditRecord), args.Error(1)
}

func (m *mockAuditRepository) List(ctx context.Context, filter types.AuditFilter) ([]types.AuditRecord, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]types.AuditRecord), args.Error(1)
}

func (m *mockAuditRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]types.AuditRecord, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]types.AuditRecord), args.Error(1)
}

func (m *mockAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	args := m.Called(ctx, channel, data, attrs)
	return args.String(0), args.Error(1)
}

type mockArchive struct {
	mock.Mock
	body []byte
}

func (m *mockArchive) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	body, _ := io.ReadAll(r)
	m.body = body
	args := m.Called(ctx, key, size, contentType)
	return args.Error(0)
}
