package timeline

import "github.com/louisbranch/brigade/internal/domain/event"

// Descriptor is display metadata for one event type. Pure presentation; it
// never influences replay or decisions.
type Descriptor struct {
	Title string
	Icon  string
	Color string
}

// descriptors covers every event type in the closed set. Exhaustiveness is
// enforced by a test against event.Types().
var descriptors = map[event.Type]Descriptor{
	event.TypeOrderStarted:               {Title: "Order started", Icon: "receipt", Color: "blue"},
	event.TypeOrderItemsModified:         {Title: "Items changed", Icon: "pencil", Color: "slate"},
	event.TypeOrderItemsValidated:        {Title: "Items validated", Icon: "check-circle", Color: "green"},
	event.TypeOrderPromotionsSet:         {Title: "Promotions updated", Icon: "tag", Color: "purple"},
	event.TypeOrderPriceCalculated:       {Title: "Price calculated", Icon: "calculator", Color: "green"},
	event.TypeOrderPaymentMethodSet:      {Title: "Payment method set", Icon: "credit-card", Color: "teal"},
	event.TypeOrderCustomerSet:           {Title: "Customer details set", Icon: "user", Color: "slate"},
	event.TypeOrderStatusChanged:         {Title: "Status changed", Icon: "arrow-right", Color: "amber"},
	event.TypeOrderNoteAdded:             {Title: "Note added", Icon: "note", Color: "slate"},
	event.TypeSessionStarted:             {Title: "Session started", Icon: "shopping-cart", Color: "blue"},
	event.TypeSessionCartItemAdded:       {Title: "Added to cart", Icon: "plus", Color: "green"},
	event.TypeSessionCartItemRemoved:     {Title: "Removed from cart", Icon: "minus", Color: "red"},
	event.TypeSessionPaymentMethodChosen: {Title: "Payment method chosen", Icon: "credit-card", Color: "teal"},
	event.TypeSessionInteractionRecorded: {Title: "Browsing activity", Icon: "eye", Color: "slate"},
	event.TypeSessionConverted:           {Title: "Converted to order", Icon: "arrow-up-right", Color: "green"},
}

// unknownDescriptor annotates event types outside the closed set, which can
// appear when reading a journal written by a newer build.
var unknownDescriptor = Descriptor{Title: "Unknown event", Icon: "question", Color: "gray"}

// Describe returns the display descriptor for an event type.
func Describe(t event.Type) Descriptor {
	if descriptor, ok := descriptors[t]; ok {
		return descriptor
	}
	return unknownDescriptor
}
