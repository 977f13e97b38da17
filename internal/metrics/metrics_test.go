package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
)

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{pattern: "GET /events/{id}", expected: "/events/{id}"},
		{pattern: "/events/", expected: "/events/"},
		{pattern: "", expected: "unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, routeLabel(tt.pattern))
		})
	}
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := HTTPMiddleware(mux)

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/widgets/{id}", "418"))
	for _, path := range []string{"/widgets/1", "/widgets/2"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/widgets/{id}", "418"))
	require.Equal(t, 2.0, after-before)
}

func TestRiverMetricsHook(t *testing.T) {
	hook := NewRiverMetricsHook()
	ctx := context.Background()
	job := &rivertype.JobRow{ID: 7, Kind: "metrics_test"}

	require.NoError(t, hook.InsertBegin(ctx, &rivertype.JobInsertParams{Kind: job.Kind}))
	require.Equal(t, 1.0, testutil.ToFloat64(RiverJobsQueued.WithLabelValues(job.Kind)))

	require.NoError(t, hook.WorkBegin(ctx, job))
	require.Equal(t, 1.0, testutil.ToFloat64(RiverJobsInFlight.WithLabelValues(job.Kind)))

	require.NoError(t, hook.WorkEnd(ctx, job, errors.New("boom")))
	require.Equal(t, 0.0, testutil.ToFloat64(RiverJobsInFlight.WithLabelValues(job.Kind)))
	require.Equal(t, 1.0, testutil.ToFloat64(RiverJobsCompleted.WithLabelValues(job.Kind, "error")))
	require.Empty(t, hook.started)
}

func TestPoolCollector_NilPool(t *testing.T) {
	require.Equal(t, 0, testutil.CollectAndCount(NewPoolCollector(nil)))
}
