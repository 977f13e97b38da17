package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AlertFunc is invoked when a job exhausts its attempts or panics.
type AlertFunc func(ctx context.Context, job *rivertype.JobRow, err error)

// AlertingErrorHandler logs job failures. Failures that will be retried are
// warnings; a final failure is an error and is forwarded to Notify.
type AlertingErrorHandler struct {
	Logger *slog.Logger
	Policy *RetryPolicy
	Notify AlertFunc
}

func NewAlertingErrorHandler(logger *slog.Logger, policy *RetryPolicy, notify AlertFunc) *AlertingErrorHandler {
	return &AlertingErrorHandler{Logger: logger, Policy: policy, Notify: notify}
}

func (h *AlertingErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.report(ctx, job, err, "")
	return nil
}

func (h *AlertingErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.report(ctx, job, fmt.Errorf("panic: %v", panicVal), trace)
	return nil
}

func (h *AlertingErrorHandler) report(ctx context.Context, job *rivertype.JobRow, err error, trace string) {
	final := h.isFinal(job)

	if h.Logger != nil {
		attrs := []any{"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", err}
		if trace != "" {
			attrs = append(attrs, "trace", trace)
		}
		if final {
			h.Logger.Error("job failed permanently", attrs...)
		} else {
			h.Logger.Warn("job failed, will retry", attrs...)
		}
	}

	if final && h.Notify != nil {
		h.Notify(ctx, job, err)
	}
}

func (h *AlertingErrorHandler) isFinal(job *rivertype.JobRow) bool {
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = h.Policy.configFor(job.Kind).MaxAttempts
	}
	return job.Attempt >= maxAttempts
}
