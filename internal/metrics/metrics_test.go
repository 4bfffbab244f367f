package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtmatch/internal/models"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.MatchTransition(models.MatchStatusCompleted)
	r.MatchTransition(models.MatchStatusCompleted)
	r.TransitionRace("confirm_result")
	r.BookingConflict("store")
	r.RequestsExpired(3)
	r.RequestsExpired(0)
	r.SweepRun("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.races.WithLabelValues("confirm_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conflicts.WithLabelValues("store")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.requestsExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sweepRuns.WithLabelValues("ok")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.SweepRun("skipped")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `courtmatch_sweep_runs_total{outcome="skipped"} 1`)
}
