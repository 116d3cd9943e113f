package ar

import "time"

// DeriveStatus computes the status of inv as of today. VOID and PAID are
// final. Otherwise a fully paid invoice is PAID, one past its due date is
// OVERDUE, one with any payment is PARTIALLY_PAID, and the rest keep their
// DRAFT or SENT base.
func DeriveStatus(inv Invoice, today time.Time) Status {
	if inv.Status == StatusVoid || inv.Status == StatusPaid {
		return inv.Status
	}
	if inv.AmountPaid.IsPositive() && !inv.BalanceDue.IsPositive() {
		return StatusPaid
	}
	if dateOnly(inv.DueDate).Before(dateOnly(today)) {
		return StatusOverdue
	}
	if inv.AmountPaid.IsPositive() {
		return StatusPartiallyPaid
	}
	return inv.baseStatus()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
