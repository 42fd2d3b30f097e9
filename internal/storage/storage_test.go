package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentdesk/apiserver/config"
)

type memBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memBackend) EnsureBucket(ctx context.Context) error { return nil }

func (m *memBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memBackend) Bucket() string { return "archive" }

func TestStorage_DelegatesToBackend(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{}, types: map[string]string{}}
	s := NewStorage(backend)

	require.NoError(t, s.Put(context.Background(), "audit-archive/a.json", bytes.NewReader([]byte(`{}`)), 2, "application/json"))
	assert.Equal(t, []byte(`{}`), backend.objects["audit-archive/a.json"])
	assert.Equal(t, "application/json", backend.types["audit-archive/a.json"])
	assert.Equal(t, "archive", s.Bucket())
}

func TestNew_Disabled(t *testing.T) {
	s, err := New(context.Background(), config.Config{Archive: config.ArchiveConfig{Backend: config.BackendNone}})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.Config{Archive: config.ArchiveConfig{Backend: "s3"}})
	assert.ErrorContains(t, err, "unsupported archive backend")
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "access key")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")

	client, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "audit"})
	require.NoError(t, err)
	assert.Equal(t, "audit", client.Bucket())
}

func TestNew_MinioFailsWithoutSettings(t *testing.T) {
	_, err := New(context.Background(), config.Config{Archive: config.ArchiveConfig{Backend: config.BackendMinio}})
	assert.ErrorContains(t, err, "init minio archive")
}
