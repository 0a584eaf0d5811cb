package order

// Event and command payloads for the order aggregate. Payloads are the only
// JSON shapes that cross the event-store boundary; fields are snake_case and
// stable.

// StartPayload is carried by order.started.
type StartPayload struct {
	StaffID         string      `json:"staff_id"`
	LocationID      string      `json:"location_id"`
	TableNumber     string      `json:"table_number,omitempty"`
	ServingType     ServingType `json:"serving_type"`
	SourceSessionID string      `json:"source_session_id,omitempty"`
}

// ItemChange describes a quantity adjustment for an existing line.
type ItemChange struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// ModifyItemsPayload is carried by order.items_modified.
type ModifyItemsPayload struct {
	Add    []Item       `json:"add,omitempty"`
	Remove []ItemChange `json:"remove,omitempty"`
	Modify []ItemChange `json:"modify,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// ValidateItemsPayload is carried by order.items_validated. Subtotal is the
// frozen sum of authoritative catalog prices at validation time.
type ValidateItemsPayload struct {
	Items    []Item `json:"items"`
	Subtotal int64  `json:"subtotal"`
}

// PromotionsPayload is carried by order.promotions_set.
type PromotionsPayload struct {
	Available   []Promotion `json:"available,omitempty"`
	AutoApplied []Promotion `json:"auto_applied,omitempty"`
}

// PricePayload is carried by order.price_calculated.
type PricePayload struct {
	Subtotal  int64  `json:"subtotal"`
	TaxRateBp int    `json:"tax_rate_bp"`
	Tax       int64  `json:"tax"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

// PaymentMethodPayload is carried by order.payment_method_set.
type PaymentMethodPayload struct {
	Method string `json:"method"`
}

// CustomerPayload is carried by order.customer_set.
type CustomerPayload struct {
	Customer Customer `json:"customer"`
}

// StatusChangePayload is carried by order.status_changed.
type StatusChangePayload struct {
	From   Status `json:"from"`
	To     Status `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// NotePayload is carried by order.note_added.
type NotePayload struct {
	Text string `json:"text"`
}

// CalculatePricePayload is the command payload for price calculation.
type CalculatePricePayload struct {
	TaxRateBp int    `json:"tax_rate_bp"`
	Currency  string `json:"currency"`
}

// ChangeStatusPayload is the command payload for a status transition.
type ChangeStatusPayload struct {
	To     Status `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// CancelPayload is the command payload for cancellation.
type CancelPayload struct {
	Reason string `json:"reason"`
}
