package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// OverdueSweeper persists OVERDUE for invoices due before asOf.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// InvoiceOverdueJob runs the nightly overdue sweep.
type InvoiceOverdueJob struct {
	Sweeper OverdueSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewInvoiceOverdueJob wires the sweep handler.
func NewInvoiceOverdueJob(sweeper OverdueSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceOverdueJob {
	return &InvoiceOverdueJob{Sweeper: sweeper, Logger: logger, Metrics: metrics, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle executes one sweep.
func (j *InvoiceOverdueJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	asOf, derr := decodeScheduled(t, j.clock())
	if derr != nil {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskInvoiceOverdueSweep)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskInvoiceOverdueSweep).With(slog.String("as_of", asOf.Format(time.DateOnly)))
	swept, err := j.Sweeper.SweepOverdue(ctx, asOf)
	metrics.AddFindings(TaskInvoiceOverdueSweep, swept)
	if err != nil {
		logger.Error("overdue sweep failed", slog.Int("swept", swept), slog.Any("error", err))
		return err
	}
	logger.Info("overdue sweep finished", slog.Int("swept", swept))
	return nil
}

func loggerFor(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
