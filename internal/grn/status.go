package grn

// Status describes how far a goods receipt has been reconciled.
type Status string

const (
	// StatusPending means nothing has been received yet.
	StatusPending Status = "Pending"
	// StatusPartial means some but not all ordered units are in.
	StatusPartial Status = "Partial"
	// StatusCompleted means every ordered unit has been received.
	StatusCompleted Status = "Completed"
)

// StatusOf derives the receipt status from received and ordered totals. The
// status is never stored; it is always recomputed from the quantities.
func StatusOf(totalReceived, totalOrdered int) Status {
	switch {
	case totalReceived <= 0:
		return StatusPending
	case totalReceived < totalOrdered:
		return StatusPartial
	default:
		return StatusCompleted
	}
}
