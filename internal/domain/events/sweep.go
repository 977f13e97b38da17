package events

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultKeepDays is the retention window used when none is configured.
const DefaultKeepDays = 365

// RetentionCutoff returns the instant before which events are expired.
func RetentionCutoff(now time.Time, keepDays int) time.Time {
	if keepDays <= 0 {
		keepDays = DefaultKeepDays
	}
	return now.Add(-time.Duration(keepDays) * 24 * time.Hour)
}

// SweepResult records the outcome of deleting one expired event.
type SweepResult struct {
	ID   int64
	When time.Time
	What string
	Err  error
}

// SweepReport aggregates a retention sweep run.
type SweepReport struct {
	RunID    string
	Cutoff   time.Time
	Results  []SweepResult
	Duration time.Duration
}

func (r SweepReport) Deleted() int {
	count := 0
	for _, result := range r.Results {
		if result.Err == nil {
			count++
		}
	}
	return count
}

func (r SweepReport) Failed() []SweepResult {
	var failed []SweepResult
	for _, result := range r.Results {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// ExpiredEvents lists the events a sweep at cutoff would delete.
func (s *Service) ExpiredEvents(ctx context.Context, cutoff time.Time) ([]Event, error) {
	items, err := s.repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	return items, nil
}

// Sweep deletes every event at or before cutoff, one at a time. A failed
// deletion is recorded in the report and the sweep moves on; only a failure
// to list candidates or a cancelled context ends the run early.
func (s *Service) Sweep(ctx context.Context, cutoff time.Time) (SweepReport, error) {
	start := s.now()
	report := SweepReport{
		RunID:  ulid.Make().String(),
		Cutoff: cutoff,
	}

	candidates, err := s.ExpiredEvents(ctx, cutoff)
	if err != nil {
		return report, err
	}

	logger := s.logger.With().Str("run_id", report.RunID).Logger()
	for _, event := range candidates {
		if err := ctx.Err(); err != nil {
			report.Duration = s.now().Sub(start)
			return report, err
		}

		logger.Info().
			Int64("event_id", event.ID).
			Time("when", event.When).
			Str("what", event.What).
			Msg("deleting expired event")

		result := SweepResult{ID: event.ID, When: event.When, What: event.What}
		if err := s.repo.Delete(ctx, event.ID); err != nil {
			result.Err = err
			logger.Warn().Err(err).Int64("event_id", event.ID).Msg("expired event not deleted")
		}
		report.Results = append(report.Results, result)
	}

	report.Duration = s.now().Sub(start)
	logger.Info().
		Time("cutoff", cutoff).
		Int("deleted", report.Deleted()).
		Int("failed", len(report.Failed())).
		Dur("duration", report.Duration).
		Msg("retention sweep finished")
	return report, nil
}
