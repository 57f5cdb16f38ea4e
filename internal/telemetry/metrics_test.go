package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHelpers(t *testing.T) {
	m := NewMetrics()

	m.Count("promotion", "branches_created", 2)
	m.Count("promotion", "branches_created", 1)
	m.Count("promotion", "skipped", 0)
	m.ObserveStage("promotion", 150*time.Millisecond)
	m.EngineAttempt("openai", false)
	m.EngineAttempt("glm", true)
	m.RunFinished("sync", nil)
	m.RunFinished("propose", errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.StageItems.WithLabelValues("promotion", "branches_created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StageItems.WithLabelValues("promotion", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineAttempts.WithLabelValues("openai", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineAttempts.WithLabelValues("glm", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("propose", "failure")))
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Count("proposal", "created", 1)
		m.ObserveStage("proposal", time.Second)
		m.EngineAttempt("openai", true)
		m.RunFinished("propose", nil)
		assert.NoError(t, m.Push(context.Background(), "http://unused", "job"))
	})
}

func TestMetricsPush(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		gotBody = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewMetrics()
	m.Count("approval_sync", "rejected_closed", 1)

	require.NoError(t, m.Push(context.Background(), server.URL, "featurefactory"))
	assert.Equal(t, "/metrics/job/featurefactory", gotPath)
	assert.NotEmpty(t, gotBody)

	assert.NoError(t, m.Push(context.Background(), "", "featurefactory"))
}

func TestMetricsPush_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := NewMetrics()
	err := m.Push(context.Background(), server.URL, "featurefactory")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}
