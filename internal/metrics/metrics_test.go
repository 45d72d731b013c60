package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveTool("book_hotel", "ok", 10*time.Millisecond)
	m.ObserveTool("book_hotel", "ok", 10*time.Millisecond)
	m.ObserveTool("book_hotel", "error", time.Millisecond)
	m.ObserveNode("book_hotel", "assistant", errors.New("boom"), time.Millisecond)
	m.ObserveTurn("message", "DONE")
	m.ObserveApproval("approve")
	m.ObserveLLM("primary_assistant", nil)
	m.ClientConnected(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("book_hotel", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("book_hotel", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeRuns.WithLabelValues("book_hotel", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("message", "DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Approvals.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("primary_assistant", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveClients))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTool("x", "ok", 0)
		m.ObserveNode("x", "tool", nil, 0)
		m.ObserveTurn("message", "DONE")
		m.ObserveApproval("deny")
		m.ObserveLLM("x", nil)
		m.ClientConnected(-1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveTurn("approval", "DONE")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gogo_travel_turns_total{kind="approval",status="DONE"} 1`)
}
