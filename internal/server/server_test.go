package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeSessions int

func (n fakeSessions) Len() int { return int(n) }

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func serve(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	r := NewRouter(NewHealthHandler(fakePinger{}, fakeSessions(3)))

	w := serve(t, r, "/healthcheck")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["sessions"])
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	r := NewRouter(NewHealthHandler(fakePinger{err: errors.New("connection refused")}, nil))

	w := serve(t, r, "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database")
}

func TestRootAndMetrics(t *testing.T) {
	r := NewRouter(NewHealthHandler(fakePinger{}, nil))

	w := serve(t, r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = serve(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, "127.0.0.1:0", NewRouter(NewHealthHandler(fakePinger{}, nil)))
	assert.NoError(t, err)
}
