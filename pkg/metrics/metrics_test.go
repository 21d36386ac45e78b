package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ChatTurn(OutcomeSuccess)
	m.ChatTurn(OutcomeSuccess)
	m.ChatTurn(OutcomeError)
	m.ExecutionError("syntax")
	m.TableCorrections(2)
	m.TableCorrections(0)
	m.ObserveLLM("generate_sql", time.Now().Add(-time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatTurns.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatTurns.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionErrors.WithLabelValues("syntax")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tableCorrections))
	assert.Equal(t, 1, testutil.CollectAndCount(m.llmDuration))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ChatTurn(OutcomeSuccess)
		m.ExecutionError("generic")
		m.TableCorrections(1)
		m.ObserveLLM("explain", time.Now())
		m.ObserveHTTP("GET", "/", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ChatTurn(OutcomeRechart)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sqlchat_chat_turns_total{outcome="rechart"} 1`)
}
