package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueSweep persists OVERDUE on invoices past their due date.
	TaskInvoiceOverdueSweep = "invoice:overdue_sweep"
	// TaskGLIntegrity verifies that every posted journal entry balances.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScheduledPayload carries the moment a run was requested for. A zero value
// means "now".
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewScheduledTask builds a task of the given type on the default queue.
func NewScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func decodeScheduled(t *asynq.Task, fallback time.Time) (time.Time, error) {
	var payload ScheduledPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return time.Time{}, err
		}
	}
	if payload.ScheduledFor.IsZero() {
		return fallback, nil
	}
	return payload.ScheduledFor, nil
}

// KnownTask reports whether taskType is handled by the worker.
func KnownTask(taskType string) bool {
	switch taskType {
	case TaskInvoiceOverdueSweep, TaskGLIntegrity, TaskIdempotencyCleanup:
		return true
	}
	return false
}
