package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
)

func TestRequestLogger_LogsRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, "/api/tables", entry.ContextMap()["path"])
	assert.Equal(t, int64(http.StatusOK), entry.ContextMap()["status"])
	assert.Equal(t, int64(5), entry.ContextMap()["bytes"])
}

func TestRequestLogger_IncludesRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := chimw.RequestID(RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 1, logs.Len())
	assert.NotEmpty(t, logs.All()[0].ContextMap()["request_id"])
}

func TestRequestLogger_NilLogger_PassesThrough(t *testing.T) {
	called := false
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
}

func TestRequestLogger_CapturesStatusCode(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, int64(http.StatusNotFound), logs.All()[0].ContextMap()["status"])
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rw := wrap(httptest.NewRecorder())

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, rw.statusCode)
}

func TestResponseWriter_ForwardsFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrap(rec)

	var w http.ResponseWriter = rw
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	flusher.Flush()

	assert.True(t, rec.Flushed)
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := Metrics(m)(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/conversations/conv_a", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/conversations/conv_b", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "sqlchat_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var path, status string
			for _, l := range metric.GetLabel() {
				switch l.GetName() {
				case "path":
					path = l.GetValue()
				case "status":
					status = l.GetValue()
				}
			}
			counts[path+" "+status] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, float64(2), counts["GET /api/conversations/{id} 404"])
	assert.Equal(t, float64(1), counts["unmatched 404"])
}

func TestMetrics_NilPassesThrough(t *testing.T) {
	called := false
	handler := Metrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
}
