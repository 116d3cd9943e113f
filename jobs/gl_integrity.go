package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ErrLedgerUnbalanced marks a run that found posted entries which do not balance.
var ErrLedgerUnbalanced = errors.New("gl integrity: unbalanced posted entries")

// IntegrityChecker lists posted entries whose lines do not balance.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) ([]journals.IntegrityIssue, error)
}

// GLIntegrityJob verifies the posted ledger.
type GLIntegrityJob struct {
	Checker IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob wires the integrity handler.
func NewGLIntegrityJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Checker: checker, Logger: logger, Metrics: metrics}
}

// Handle runs the check. Offending entries are logged one by one and fail the
// run without retries, since a retry cannot repair stored data.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Checker == nil {
		return errors.New("gl integrity: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskGLIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskGLIntegrity)
	issues, err := j.Checker.CheckIntegrity(ctx)
	if err != nil {
		logger.Error("integrity query failed", slog.Any("error", err))
		return err
	}
	if len(issues) == 0 {
		logger.Info("ledger balanced")
		return nil
	}
	metrics.AddFindings(TaskGLIntegrity, len(issues))
	for _, issue := range issues {
		logger.Error("unbalanced journal entry",
			slog.Int64("entry_id", issue.EntryID),
			slog.String("number", issue.Number),
			slog.String("debit", issue.Debit.String()),
			slog.String("credit", issue.Credit.String()))
	}
	return fmt.Errorf("%w: %d entries: %w", ErrLedgerUnbalanced, len(issues), asynq.SkipRetry)
}
