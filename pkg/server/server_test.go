package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AudioList/clover/config"
	healthroute "github.com/AudioList/clover/pkg/routes/health"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:      "clover-test",
		Port:         3004,
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
	}
}

func newTestServer() (*Server, *healthroute.Checker) {
	checker := healthroute.NewChecker(nil, nil, "test")
	return New(testConfig(), testLogger(), checker), checker
}

func TestHealthEndpoints(t *testing.T) {
	srv, checker := newTestServer()

	t.Run("Live", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ReadyBeforeStart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ReadyAfterSetReady", func(t *testing.T) {
		checker.SetReady(true)
		defer checker.SetReady(false)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("HealthWithoutDatabase", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status healthroute.HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "unhealthy", status.Status)
		require.Contains(t, status.Checks, "database")
		assert.Equal(t, "unhealthy", status.Checks["database"].Status)
	})
}

func TestRouteRegistration(t *testing.T) {
	srv, _ := newTestServer()

	registered := make(map[string]bool)
	for _, r := range srv.Echo().Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	expected := []string{
		"GET /api/v1/products",
		"POST /api/v1/products",
		"GET /api/v1/products/:id",
		"PUT /api/v1/products/:id",
		"DELETE /api/v1/products/:id",
		"GET /api/v1/match-decisions",
		"GET /api/v1/match-decisions/:id",
		"POST /api/v1/match-decisions/:id/resolve",
		"POST /api/v1/reconcile/run",
		"POST /api/v1/reconcile/variants",
		"GET /api/v1/health",
		"GET /api/v1/health/live",
		"GET /api/v1/health/ready",
	}

	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestRequestIDHeaderFlow(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
