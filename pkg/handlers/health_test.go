package handlers

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

func newHealthMux(report services.HealthReport) *http.ServeMux {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	mux := http.NewServeMux()
	NewHealthHandler(cfg, &mockHealthService{report: report}, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestHealthHandler_Health(t *testing.T) {
	mux := newHealthMux(services.HealthReport{})

	rec := do(t, mux, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthHandler_Ping(t *testing.T) {
	mux := newHealthMux(services.HealthReport{})

	rec := do(t, mux, http.MethodGet, "/ping", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PingResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.Equal(t, "ekaya-sqlchat", resp.Service)
	assert.Equal(t, runtime.Version(), resp.GoVersion)
	assert.Equal(t, "test", resp.Environment)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		report services.HealthReport
		want   string
	}{
		{
			name:   "healthy",
			report: services.HealthReport{Status: services.HealthHealthy, DatabaseConnected: true, VannaInitialized: true},
			want:   `{"status":"healthy","database_connected":true,"vanna_initialized":true}`,
		},
		{
			name:   "degraded",
			report: services.HealthReport{Status: services.HealthDegraded, VannaInitialized: true},
			want:   `{"status":"degraded","database_connected":false,"vanna_initialized":true}`,
		},
		{
			name:   "unhealthy",
			report: services.HealthReport{Status: services.HealthUnhealthy},
			want:   `{"status":"unhealthy","database_connected":false,"vanna_initialized":false}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newHealthMux(tt.report), http.MethodGet, "/api/health", "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestRootHandler_Welcome(t *testing.T) {
	mux := http.NewServeMux()
	NewRootHandler("1.2.3", zap.NewNop()).RegisterRoutes(mux)

	rec := do(t, mux, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[WelcomeResponse](t, rec)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "/api/health", resp.Health)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
