package session

import "github.com/louisbranch/brigade/internal/domain/order"

// StartPayload is carried by session.started.
type StartPayload struct {
	CustomerID  string            `json:"customer_id,omitempty"`
	LocationID  string            `json:"location_id"`
	TableNumber string            `json:"table_number,omitempty"`
	ServingType order.ServingType `json:"serving_type"`
}

// CartItemAddedPayload is carried by session.cart_item_added. No price: the
// catalog is consulted at conversion time instead.
type CartItemAddedPayload struct {
	ItemID    string   `json:"item_id"`
	Name      string   `json:"name,omitempty"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// CartItemRemovedPayload is carried by session.cart_item_removed. A zero or
// oversized quantity removes the whole line.
type CartItemRemovedPayload struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity,omitempty"`
}

// PaymentMethodChosenPayload is carried by session.payment_method_chosen.
type PaymentMethodChosenPayload struct {
	Method string `json:"method"`
}

// InteractionPayload is carried by session.interaction_recorded.
type InteractionPayload struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

// ConvertedPayload is carried by session.converted and back-references the
// order created from the session cart.
type ConvertedPayload struct {
	OrderID string `json:"order_id"`
}
