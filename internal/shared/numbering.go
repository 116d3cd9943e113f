package shared

import (
	"fmt"
	"time"
)

// Document number prefixes.
const (
	PrefixJournal       = "JE"
	PrefixPurchaseOrder = "PO"
	PrefixSalesOrder    = "SO"
	PrefixInvoice       = "INV"
)

// FormatNumber renders a year scoped document number, e.g. JE-2025-0007.
// Sequences beyond 9999 widen instead of wrapping.
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// NumberYear returns the calendar year a document date is numbered under.
func NumberYear(date time.Time) int {
	return date.UTC().Year()
}
