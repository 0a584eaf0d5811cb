package order

import "time"

// State captures the replayed order aggregate state used by deciders.
//
// Every field is a pure function of the ordered event list; nothing outside
// Fold may write to it.
type State struct {
	// Created indicates whether order.started has been successfully applied.
	Created bool
	// Status is the current lifecycle state that gates what operations are legal.
	Status Status
	// ServingType decides whether delivery statuses are reachable.
	ServingType ServingType
	// StaffID is the staff member who started the order.
	StaffID string
	// LocationID is the restaurant location the order belongs to.
	LocationID string
	// TableNumber is the optional dine-in table.
	TableNumber string
	// SourceSessionID back-references the cart session this order was
	// converted from, when applicable.
	SourceSessionID string
	// Items is the ordered list of priced order lines.
	Items []Item
	// Customer holds optional contact details.
	Customer Customer
	// PaymentMethod is the chosen payment method label.
	PaymentMethod string
	// Money holds the priced totals in integer minor units.
	Money Money
	// Validated indicates the subtotal was frozen from authoritative prices.
	Validated bool
	// Promotions holds available and auto-applied promotions.
	Promotions Promotions
	// Notes collects free-form staff notes in append order.
	Notes []Note
	// Timestamps records when each status was first reached.
	Timestamps Timestamps
	// History is the immutable status transition log.
	History []StatusRecord
}

// Item is one priced order line.
type Item struct {
	ItemID    string   `json:"item_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice int64    `json:"unit_price"`
	Modifiers []string `json:"modifiers,omitempty"`
	LineTotal int64    `json:"line_total"`
}

// Customer holds optional order contact details.
type Customer struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Money holds priced totals in integer minor units to avoid float drift.
type Money struct {
	Subtotal  int64  `json:"subtotal"`
	Tax       int64  `json:"tax"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
	TaxRateBp int    `json:"tax_rate_bp"`
	Currency  string `json:"currency"`
}

// Promotion is a discount applied or offered to an order, in minor units.
type Promotion struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Discount int64  `json:"discount"`
}

// Promotions separates offered promotions from the ones applied automatically.
type Promotions struct {
	Available   []Promotion `json:"available,omitempty"`
	AutoApplied []Promotion `json:"auto_applied,omitempty"`
}

// Note is a free-form staff annotation.
type Note struct {
	Text    string    `json:"text"`
	ActorID string    `json:"actor_id,omitempty"`
	At      time.Time `json:"at"`
}

// Timestamps records when each status was first reached. Backward transitions
// clear the timestamps of statuses later than the target since they are no
// longer accurate.
type Timestamps struct {
	StartedAt    *time.Time `json:"started_at,omitempty"`
	PlacedAt     *time.Time `json:"placed_at,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt  *time.Time `json:"preparing_at,omitempty"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	DeliveringAt *time.Time `json:"delivering_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
}

// StatusRecord is one entry of the immutable status history.
type StatusRecord struct {
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	Reason  string    `json:"reason,omitempty"`
	ActorID string    `json:"actor_id,omitempty"`
	At      time.Time `json:"at"`
}

// AppliedDiscount sums auto-applied promotion discounts.
func (p Promotions) AppliedDiscount() int64 {
	var total int64
	for _, promo := range p.AutoApplied {
		total += promo.Discount
	}
	return total
}

// timestampFor returns a pointer to the timestamp slot for a status.
func (t *Timestamps) timestampFor(s Status) **time.Time {
	switch s {
	case StatusDraft:
		return &t.StartedAt
	case StatusPlaced:
		return &t.PlacedAt
	case StatusConfirmed:
		return &t.ConfirmedAt
	case StatusPreparing:
		return &t.PreparingAt
	case StatusReady:
		return &t.ReadyAt
	case StatusDelivering:
		return &t.DeliveringAt
	case StatusDelivered:
		return &t.DeliveredAt
	case StatusCompleted:
		return &t.CompletedAt
	case StatusCancelled:
		return &t.CancelledAt
	case StatusRefunded:
		return &t.RefundedAt
	default:
		return nil
	}
}

// mark records when a status was reached.
func (t *Timestamps) mark(s Status, at time.Time) {
	slot := t.timestampFor(s)
	if slot != nil {
		stamped := at
		*slot = &stamped
	}
}

// clearAfter clears timestamps for statuses strictly later than the target in
// the canonical forward ordering.
func (t *Timestamps) clearAfter(s Status) {
	idx := forwardIndex(s)
	if idx == -1 {
		return
	}
	for _, later := range forwardOrdering[idx+1:] {
		slot := t.timestampFor(later)
		if slot != nil {
			*slot = nil
		}
	}
}
