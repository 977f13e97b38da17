package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/metrics"
	"github.com/riverqueue/river"
)

// RetentionSweepArgs carries no payload; the retention window comes from
// the worker's configuration.
type RetentionSweepArgs struct{}

func (RetentionSweepArgs) Kind() string { return JobKindRetentionSweep }

// Sweeper deletes events at or before a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (events.SweepReport, error)
}

// RetentionSweepWorker deletes events older than KeepDays. Individual
// deletion failures are logged and counted but do not fail the job; only a
// failure to list candidates is retried.
type RetentionSweepWorker struct {
	river.WorkerDefaults[RetentionSweepArgs]
	Sweeper  Sweeper
	KeepDays int
	Logger   *slog.Logger
	Now      func() time.Time
}

func (w RetentionSweepWorker) Work(ctx context.Context, job *river.Job[RetentionSweepArgs]) error {
	if w.Sweeper == nil {
		return errors.New("retention sweeper not configured")
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	cutoff := events.RetentionCutoff(now(), w.KeepDays)
	logger.Info("starting retention sweep",
		"cutoff", cutoff,
		"keep_days", w.KeepDays,
		"attempt", job.Attempt,
	)

	report, err := w.Sweeper.Sweep(ctx, cutoff)
	RecordSweep(report)
	if err != nil {
		logger.Error("retention sweep aborted", "run_id", report.RunID, "error", err)
		return err
	}

	for _, failed := range report.Failed() {
		logger.Warn("expired event not deleted",
			"run_id", report.RunID,
			"event_id", failed.ID,
			"when", failed.When,
			"error", failed.Err,
		)
	}
	logger.Info("retention sweep completed",
		"run_id", report.RunID,
		"deleted", report.Deleted(),
		"failed", len(report.Failed()),
		"duration", report.Duration,
	)
	metrics.RetentionLastSuccess.SetToCurrentTime()
	return nil
}

// RecordSweep publishes a sweep report to the retention metrics.
func RecordSweep(report events.SweepReport) {
	metrics.EventsDeleted.WithLabelValues("retention").Add(float64(report.Deleted()))
	metrics.RetentionItemFailures.Add(float64(len(report.Failed())))
	metrics.RetentionSweepDuration.Observe(report.Duration.Seconds())
}
