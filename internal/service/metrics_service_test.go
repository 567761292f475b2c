package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-idcard/pkg/jobs"
)

type statsStub jobs.Stats

func (s statsStub) Stats() jobs.Stats { return jobs.Stats(s) }

func TestMetricsServiceRecordsRendersAndRequests(t *testing.T) {
	m := NewMetricsService()
	m.ObserveCardRender("success", 10*time.Millisecond)
	m.ObserveCardRender("success", 20*time.Millisecond)
	m.ObserveCardRender("error", time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/students", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cardsRendered.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cardsRendered.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodGet, "/api/v1/students", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cards_rendered_total")
	assert.Contains(t, rec.Body.String(), "card_render_duration_seconds")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveCardRender("success", time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceTrackQueue(t *testing.T) {
	m := NewMetricsService()
	require.NoError(t, m.TrackQueue("card_render", statsStub{Enqueued: 5, Coalesced: 1, Succeeded: 3, Failed: 2}))

	count, err := testutil.GatherAndCount(m.Registry(), "card_render_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `card_render_jobs_total{state="failed"} 2`)

	assert.Error(t, m.TrackQueue("card_render", statsStub{}), "duplicate registration")
}
