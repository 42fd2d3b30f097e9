package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentdesk/apiserver/config"
	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/logger"
)

func TestRequestLogger_AttachesRequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter("incidentdesk", "info", &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, requestLogger(base))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context(), nil).Info("inside handler")
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))
	assert.NotEmpty(t, inner["request_id"])
	assert.Equal(t, inner["request_id"], access["request_id"])
	assert.Equal(t, float64(http.StatusAccepted), access["status"])
	assert.Equal(t, "/ping", access["path"])
}

func TestPruneRefreshTokens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens, err := auth.NewTokenService("a", "b", auth.NewMemoryRefreshStore(),
		auth.WithClock(clock),
		auth.WithRefreshTTL(time.Minute),
	)
	require.NoError(t, err)

	_, err = tokens.IssueRefreshToken(context.Background(), "u-1", "usuario")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	pruneRefreshTokens(context.Background(), tokens, logger.Discard())

	live, err := tokens.LiveRefreshTokens(context.Background())
	require.NoError(t, err)
	assert.Zero(t, live)
}

func TestRunRefreshJanitor_StopsOnCancel(t *testing.T) {
	tokens, err := auth.NewTokenService("a", "b", auth.NewMemoryRefreshStore())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runRefreshJanitor(ctx, tokens, 10*time.Millisecond, logger.Discard())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, logger.Discard())
	assert.ErrorContains(t, err, "ACCESS_SECRET")
}
