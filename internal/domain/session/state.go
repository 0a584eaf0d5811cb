package session

import (
	"time"

	"github.com/louisbranch/brigade/internal/domain/order"
)

// State captures the replayed session aggregate.
//
// A session is the pre-checkout phase: customers browse and build a cart
// before any money is involved. Cart lines deliberately carry no price; the
// authoritative price is fetched from the catalog at conversion time.
type State struct {
	// Created indicates whether session.started has been applied.
	Created bool
	// CustomerID is the browsing customer, when known.
	CustomerID string
	// LocationID is the restaurant location the session belongs to.
	LocationID string
	// TableNumber is the optional dine-in table.
	TableNumber string
	// ServingType is the intended fulfilment of a future order.
	ServingType order.ServingType
	// Cart is the ordered list of unpriced cart lines.
	Cart []CartLine
	// PaymentMethod is the customer's stated payment preference.
	PaymentMethod string
	// Interactions collects browsing activity in append order.
	Interactions []Interaction
	// Converted indicates the session has been turned into an order.
	Converted bool
	// ConvertedOrderID back-references the order created from this session.
	ConvertedOrderID string
	// StartedAt is when the session began.
	StartedAt time.Time
	// ConvertedAt is when the session was converted, when it was.
	ConvertedAt *time.Time
}

// CartLine is one unpriced cart entry.
type CartLine struct {
	ItemID    string   `json:"item_id"`
	Name      string   `json:"name,omitempty"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Interaction is one recorded browsing action.
type Interaction struct {
	Kind   string    `json:"kind"`
	Target string    `json:"target,omitempty"`
	At     time.Time `json:"at"`
}

// Interaction kinds recorded for analytics.
const (
	InteractionKindSearch       = "search"
	InteractionKindCategoryView = "category_view"
	InteractionKindItemView     = "item_view"
)
