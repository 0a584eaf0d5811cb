package order

import "strings"

// Status describes the order lifecycle label used by domain decisions.
type Status string

const (
	StatusUnspecified Status = ""
	StatusDraft       Status = "draft"
	StatusPlaced      Status = "placed"
	StatusConfirmed   Status = "confirmed"
	StatusPreparing   Status = "preparing"
	StatusReady       Status = "ready"
	StatusDelivering  Status = "delivering"
	StatusDelivered   Status = "delivered"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRefunded    Status = "refunded"
)

// ServingType describes how the order is fulfilled.
type ServingType string

const (
	ServingTypeUnspecified ServingType = ""
	ServingTypeDineIn      ServingType = "dine_in"
	ServingTypeTakeaway    ServingType = "takeaway"
	ServingTypeDelivery    ServingType = "delivery"
)

// forwardOrdering is the canonical forward progression of an order. A move to
// a status earlier in this list is a backward transition and requires a reason.
var forwardOrdering = []Status{
	StatusDraft,
	StatusPlaced,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusDelivering,
	StatusDelivered,
	StatusCompleted,
}

// transitions is the adjacency table of legal status moves. Cancellation is
// legal from every non-terminal status; one-step backward moves are legal so
// staff can correct mistakes, gated by RequiresReason.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusPlaced, StatusConfirmed, StatusCancelled},
	StatusPlaced:     {StatusDraft, StatusConfirmed, StatusCancelled, StatusRefunded},
	StatusConfirmed:  {StatusPlaced, StatusPreparing, StatusCancelled, StatusRefunded},
	StatusPreparing:  {StatusConfirmed, StatusReady, StatusCancelled, StatusRefunded},
	StatusReady:      {StatusPreparing, StatusDelivering, StatusCompleted, StatusCancelled, StatusRefunded},
	StatusDelivering: {StatusReady, StatusDelivered, StatusCancelled, StatusRefunded},
	StatusDelivered:  {StatusDelivering, StatusCompleted, StatusCancelled, StatusRefunded},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

// IsTerminal reports whether no further status changes are accepted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// forwardIndex returns the position of a status in the canonical ordering,
// or -1 for statuses outside it (cancelled, refunded, unspecified).
func forwardIndex(s Status) int {
	for i, status := range forwardOrdering {
		if status == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether moving from one status to another is legal for
// the given serving type. Delivery-only statuses are rejected for non-delivery
// orders.
func CanTransition(from, to Status, serving ServingType) bool {
	if to == StatusDelivering || to == StatusDelivered {
		if serving != ServingTypeDelivery {
			return false
		}
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RequiresReason reports whether a transition must carry an operator reason:
// every cancellation, and every backward move along the canonical ordering.
func RequiresReason(from, to Status) bool {
	if to == StatusCancelled {
		return true
	}
	fromIdx := forwardIndex(from)
	toIdx := forwardIndex(to)
	if fromIdx == -1 || toIdx == -1 {
		return false
	}
	return toIdx < fromIdx
}

// StatusFromLabel parses a string label into a Status. It trims whitespace and
// matches case-insensitively.
func StatusFromLabel(value string) (Status, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch Status(trimmed) {
	case StatusDraft, StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady,
		StatusDelivering, StatusDelivered, StatusCompleted, StatusCancelled, StatusRefunded:
		return Status(trimmed), true
	default:
		return StatusUnspecified, false
	}
}

// ServingTypeFromLabel parses a string label into a ServingType. Empty values
// default to dine-in.
func ServingTypeFromLabel(value string) (ServingType, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch ServingType(trimmed) {
	case ServingTypeUnspecified:
		return ServingTypeDineIn, true
	case ServingTypeDineIn, ServingTypeTakeaway, ServingTypeDelivery:
		return ServingType(trimmed), true
	default:
		return ServingTypeUnspecified, false
	}
}

// Statuses returns every defined status label. Used by exhaustiveness tests.
func Statuses() []Status {
	return []Status{
		StatusDraft, StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady,
		StatusDelivering, StatusDelivered, StatusCompleted, StatusCancelled, StatusRefunded,
	}
}
