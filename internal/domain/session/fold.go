package session

import (
	"encoding/json"

	"github.com/louisbranch/brigade/internal/domain/event"
)

// Fold applies an event to session state. Deterministic and the only writer
// of State.
func Fold(state State, evt event.Event) State {
	switch evt.Type {
	case event.TypeSessionStarted:
		var payload StartPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Created = true
		state.CustomerID = payload.CustomerID
		state.LocationID = payload.LocationID
		state.TableNumber = payload.TableNumber
		state.ServingType = payload.ServingType
		state.StartedAt = evt.Timestamp

	case event.TypeSessionCartItemAdded:
		var payload CartItemAddedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Cart = addCartLine(state.Cart, payload)

	case event.TypeSessionCartItemRemoved:
		var payload CartItemRemovedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Cart = removeCartLine(state.Cart, payload)

	case event.TypeSessionPaymentMethodChosen:
		var payload PaymentMethodChosenPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.PaymentMethod = payload.Method

	case event.TypeSessionInteractionRecorded:
		var payload InteractionPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Interactions = append(state.Interactions, Interaction{
			Kind:   payload.Kind,
			Target: payload.Target,
			At:     evt.Timestamp,
		})

	case event.TypeSessionConverted:
		var payload ConvertedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Converted = true
		state.ConvertedOrderID = payload.OrderID
		at := evt.Timestamp
		state.ConvertedAt = &at
	}
	return state
}

// Replay folds an ordered event slice from the zero state.
func Replay(events []event.Event) State {
	var state State
	for _, evt := range events {
		state = Fold(state, evt)
	}
	return state
}

// addCartLine merges an addition into an existing line when item id and
// modifiers match, otherwise appends a new line.
func addCartLine(cart []CartLine, payload CartItemAddedPayload) []CartLine {
	if payload.Quantity <= 0 {
		return cart
	}
	next := append([]CartLine(nil), cart...)
	for i := range next {
		if next[i].ItemID == payload.ItemID && sameModifiers(next[i].Modifiers, payload.Modifiers) {
			next[i].Quantity += payload.Quantity
			return next
		}
	}
	return append(next, CartLine{
		ItemID:    payload.ItemID,
		Name:      payload.Name,
		Quantity:  payload.Quantity,
		Modifiers: payload.Modifiers,
	})
}

// removeCartLine decrements the first matching line, dropping it when the
// remaining quantity reaches zero.
func removeCartLine(cart []CartLine, payload CartItemRemovedPayload) []CartLine {
	next := append([]CartLine(nil), cart...)
	for i := range next {
		if next[i].ItemID != payload.ItemID {
			continue
		}
		quantity := payload.Quantity
		if quantity <= 0 || quantity > next[i].Quantity {
			quantity = next[i].Quantity
		}
		next[i].Quantity -= quantity
		break
	}
	filtered := next[:0]
	for _, line := range next {
		if line.Quantity > 0 {
			filtered = append(filtered, line)
		}
	}
	return filtered
}

func sameModifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
