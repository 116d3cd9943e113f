package procurement

// DeriveReceiptStatus computes the receiving status implied by the lines:
// RECEIVED once every line is fully received, PARTIALLY_RECEIVED once
// anything arrived, ORDERED otherwise.
func DeriveReceiptStatus(lines []Line) Status {
	if len(lines) == 0 {
		return StatusOrdered
	}
	complete, started := true, false
	for _, line := range lines {
		if line.QtyReceived.LessThan(line.QtyOrdered) {
			complete = false
		}
		if line.QtyReceived.IsPositive() {
			started = true
		}
	}
	switch {
	case complete:
		return StatusReceived
	case started:
		return StatusPartiallyReceived
	default:
		return StatusOrdered
	}
}
