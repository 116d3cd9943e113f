package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CountingAuditor forwards audit records and counts the ones that persisted.
type CountingAuditor struct {
	next   shared.AuditPort
	events *prometheus.CounterVec
}

// Auditor decorates next with the domain event counter.
func (m *Metrics) Auditor(next shared.AuditPort) *CountingAuditor {
	a := &CountingAuditor{next: next}
	if m != nil {
		a.events = m.domainEvents
	}
	return a
}

// Record implements shared.AuditPort.
func (a *CountingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	if a.next != nil {
		if err := a.next.Record(ctx, log); err != nil {
			return err
		}
	}
	if a.events != nil {
		a.events.WithLabelValues(log.Entity, log.Action).Inc()
	}
	return nil
}
