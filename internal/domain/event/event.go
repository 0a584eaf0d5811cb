package event

import (
	"strings"
	"time"
)

// Type identifies the type of a domain event.
type Type string

// Order lifecycle events.
const (
	// TypeOrderStarted records the creation of an order aggregate.
	TypeOrderStarted Type = "order.started"
	// TypeOrderItemsModified records item additions, removals, or changes.
	TypeOrderItemsModified Type = "order.items_modified"
	// TypeOrderItemsValidated records the frozen, catalog-priced subtotal.
	TypeOrderItemsValidated Type = "order.items_validated"
	// TypeOrderPromotionsSet records available and auto-applied promotions.
	TypeOrderPromotionsSet Type = "order.promotions_set"
	// TypeOrderPriceCalculated records the final tax and total calculation.
	TypeOrderPriceCalculated Type = "order.price_calculated"
	// TypeOrderPaymentMethodSet records the chosen payment method.
	TypeOrderPaymentMethodSet Type = "order.payment_method_set"
	// TypeOrderCustomerSet records customer contact details.
	TypeOrderCustomerSet Type = "order.customer_set"
	// TypeOrderStatusChanged records an order status transition.
	TypeOrderStatusChanged Type = "order.status_changed"
	// TypeOrderNoteAdded records a free-form staff note.
	TypeOrderNoteAdded Type = "order.note_added"
)

// Session events (pre-checkout cart activity).
const (
	// TypeSessionStarted records the start of a browsing session.
	TypeSessionStarted Type = "session.started"
	// TypeSessionCartItemAdded records a cart line addition.
	TypeSessionCartItemAdded Type = "session.cart_item_added"
	// TypeSessionCartItemRemoved records a cart line removal.
	TypeSessionCartItemRemoved Type = "session.cart_item_removed"
	// TypeSessionPaymentMethodChosen records the payment-method choice.
	TypeSessionPaymentMethodChosen Type = "session.payment_method_chosen"
	// TypeSessionInteractionRecorded records browsing activity kept for analytics.
	TypeSessionInteractionRecorded Type = "session.interaction_recorded"
	// TypeSessionConverted records the conversion into a new order aggregate.
	TypeSessionConverted Type = "session.converted"
)

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the system.
	ActorTypeSystem ActorType = "system"
	// ActorTypeStaff indicates the event was triggered by a staff member.
	ActorTypeStaff ActorType = "staff"
	// ActorTypeCustomer indicates the event was triggered by a customer.
	ActorTypeCustomer ActorType = "customer"
)

// Event represents an immutable event in the order journal.
//
// Version is assigned by the store on append and is gapless per aggregate,
// starting at 1. Timestamp is when the event occurred from the caller's point
// of view; RecordedAt is when the store accepted it. Everything else is part
// of the envelope copied from the originating command.
type Event struct {
	// AggregateID is the order or session this event belongs to.
	AggregateID string
	// Version is the event sequence number within the aggregate (starts at 1).
	Version uint64
	// Type identifies the kind of event.
	Type Type
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// RecordedAt is when the store durably appended the event.
	RecordedAt time.Time
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the staff or customer id when the actor is not the system.
	ActorID string
	// Meta carries optional envelope metadata. Known keys are documented on
	// MetaKey constants; unknown keys are preserved for forward compatibility.
	Meta map[string]string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// Known Meta keys. The map is an escape hatch; these are the fields readers
// may rely on.
const (
	// MetaKeyLocation carries the restaurant location id.
	MetaKeyLocation = "location_id"
	// MetaKeyDevice carries the originating POS device id.
	MetaKeyDevice = "device_id"
	// MetaKeyRequest correlates events produced by one logical request.
	MetaKeyRequest = "request_id"
)

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type ("order" or "session").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Types returns the closed set of event types the engine understands.
// Projection appliers and the timeline descriptor table are validated
// against this list.
func Types() []Type {
	return []Type{
		TypeOrderStarted,
		TypeOrderItemsModified,
		TypeOrderItemsValidated,
		TypeOrderPromotionsSet,
		TypeOrderPriceCalculated,
		TypeOrderPaymentMethodSet,
		TypeOrderCustomerSet,
		TypeOrderStatusChanged,
		TypeOrderNoteAdded,
		TypeSessionStarted,
		TypeSessionCartItemAdded,
		TypeSessionCartItemRemoved,
		TypeSessionPaymentMethodChosen,
		TypeSessionInteractionRecorded,
		TypeSessionConverted,
	}
}
