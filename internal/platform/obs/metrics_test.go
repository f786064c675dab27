package obs

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.ObserveOptimization("tsp", nil, 20*time.Millisecond)
	m.ObserveOptimization("tsp", errors.New("boom"), time.Second)
	m.ObserveSave("partial", 2)
	m.ObserveAction("TOGGLE_RECIPIENT", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `wizard_optimizations_total{kind="tsp",outcome="error"} 1`)
	assert.Contains(t, body, `wizard_saves_total{outcome="partial"} 1`)
	assert.Contains(t, body, "wizard_assignments_created_total 2")
	assert.Contains(t, body, `wizard_actions_dispatched_total{applied="true",type="TOGGLE_RECIPIENT"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	m.ObserveSave("success", 1)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("loud")
	assert.Error(t, err)

	l, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
