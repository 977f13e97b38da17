package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/config"
	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newEventsCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Maintenance commands for stored events",
	}
	cmd.AddCommand(newDeleteOldCommand(global))
	return cmd
}

func newDeleteOldCommand(global *globalOptions) *cobra.Command {
	var (
		days   int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "delete-old",
		Short: "Delete events older than the retention window",
		Long: `Delete every event older than the retention window, the same sweep the
server schedules periodically. Without --days the configured
EVENTS_MAX_KEEP_DAYS applies (365 when unset).

Examples:
  # Show what a sweep would delete
  server events delete-old --dry-run

  # Keep only the last 30 days
  server events delete-old --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			keepDays := cfg.Retention.KeepDays
			if cmd.Flags().Changed("days") {
				keepDays = config.ResolveKeepDays(days)
			}

			logger := config.NewLogger(cfg.Logging)
			pool, err := openPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}
			service := events.NewService(repo.Events(), logger, events.ListingConfig{})

			cutoff := events.RetentionCutoff(time.Now(), keepDays)
			return runDeleteOld(cmd.Context(), cmd.OutOrStdout(), service, cutoff, dryRun)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (default: EVENTS_MAX_KEEP_DAYS)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the events that would be deleted without deleting them")
	return cmd
}

type retentionService interface {
	ExpiredEvents(ctx context.Context, cutoff time.Time) ([]events.Event, error)
	Sweep(ctx context.Context, cutoff time.Time) (events.SweepReport, error)
}

func runDeleteOld(ctx context.Context, out io.Writer, service retentionService, cutoff time.Time, dryRun bool) error {
	if dryRun {
		expired, err := service.ExpiredEvents(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, event := range expired {
			fmt.Fprintf(out, "Would delete - %s %s\n", event.When.UTC().Format(time.RFC3339), event.What)
		}
		fmt.Fprintf(out, "%d event(s) at or before %s\n", len(expired), cutoff.UTC().Format(time.RFC3339))
		return nil
	}

	report, err := service.Sweep(ctx, cutoff)
	for _, result := range report.Results {
		if result.Err != nil {
			fmt.Fprintf(out, "Failed - %s %s: %v\n", result.When.UTC().Format(time.RFC3339), result.What, result.Err)
			continue
		}
		fmt.Fprintf(out, "Deleting - %s %s\n", result.When.UTC().Format(time.RFC3339), result.What)
	}
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}

	fmt.Fprintf(out, "deleted %d event(s), %d failed (run %s)\n", report.Deleted(), len(report.Failed()), report.RunID)
	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d event(s) could not be deleted", failed)
	}
	return nil
}
