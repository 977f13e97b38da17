package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	cutoff time.Time
	report events.SweepReport
	err    error
}

func (s *stubSweeper) Sweep(ctx context.Context, cutoff time.Time) (events.SweepReport, error) {
	s.cutoff = cutoff
	s.report.Cutoff = cutoff
	return s.report, s.err
}

func retentionJob() *river.Job[RetentionSweepArgs] {
	return &river.Job[RetentionSweepArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Kind: JobKindRetentionSweep, Attempt: 1},
		Args:   RetentionSweepArgs{},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetentionSweepWorker_ItemFailuresDoNotFailJob(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sweeper := &stubSweeper{report: events.SweepReport{
		RunID: "01TEST",
		Results: []events.SweepResult{
			{ID: 1},
			{ID: 2, Err: errors.New("lock timeout")},
			{ID: 3},
		},
	}}
	worker := RetentionSweepWorker{
		Sweeper:  sweeper,
		KeepDays: 30,
		Logger:   quietLogger(),
		Now:      func() time.Time { return now },
	}

	deletedBefore := testutil.ToFloat64(metrics.EventsDeleted.WithLabelValues("retention"))
	failedBefore := testutil.ToFloat64(metrics.RetentionItemFailures)

	require.NoError(t, worker.Work(context.Background(), retentionJob()))
	require.Equal(t, now.AddDate(0, 0, -30), sweeper.cutoff)
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.EventsDeleted.WithLabelValues("retention"))-deletedBefore)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.RetentionItemFailures)-failedBefore)
}

func TestRetentionSweepWorker_DefaultKeepDays(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sweeper := &stubSweeper{}
	worker := RetentionSweepWorker{Sweeper: sweeper, Logger: quietLogger(), Now: func() time.Time { return now }}

	require.NoError(t, worker.Work(context.Background(), retentionJob()))
	require.Equal(t, now.Add(-365*24*time.Hour), sweeper.cutoff)
}

func TestRetentionSweepWorker_ListingFailureIsRetried(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("connection reset")}
	worker := RetentionSweepWorker{Sweeper: sweeper, KeepDays: 1, Logger: quietLogger()}

	require.ErrorContains(t, worker.Work(context.Background(), retentionJob()), "connection reset")
}

func TestRetentionSweepWorker_Unconfigured(t *testing.T) {
	require.Error(t, RetentionSweepWorker{}.Work(context.Background(), retentionJob()))
}
