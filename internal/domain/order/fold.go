package order

import (
	"encoding/json"

	"github.com/louisbranch/brigade/internal/domain/event"
)

// Fold applies an event to order state. It is the only writer of State: the
// same events in the same order always produce identical state.
func Fold(state State, evt event.Event) State {
	switch evt.Type {
	case event.TypeOrderStarted:
		var payload StartPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Created = true
		state.Status = StatusDraft
		state.StaffID = payload.StaffID
		state.LocationID = payload.LocationID
		state.TableNumber = payload.TableNumber
		state.ServingType = payload.ServingType
		state.SourceSessionID = payload.SourceSessionID
		state.Timestamps.mark(StatusDraft, evt.Timestamp)

	case event.TypeOrderItemsModified:
		var payload ModifyItemsPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Items = applyItemChanges(state.Items, payload)
		// Any item change invalidates a previously frozen subtotal.
		state.Validated = false

	case event.TypeOrderItemsValidated:
		var payload ValidateItemsPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Items = append([]Item(nil), payload.Items...)
		state.Money.Subtotal = payload.Subtotal
		state.Validated = true

	case event.TypeOrderPromotionsSet:
		var payload PromotionsPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Promotions = Promotions{
			Available:   append([]Promotion(nil), payload.Available...),
			AutoApplied: append([]Promotion(nil), payload.AutoApplied...),
		}

	case event.TypeOrderPriceCalculated:
		var payload PricePayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Money = Money{
			Subtotal:  payload.Subtotal,
			Tax:       payload.Tax,
			Discount:  payload.Discount,
			Total:     payload.Total,
			TaxRateBp: payload.TaxRateBp,
			Currency:  payload.Currency,
		}

	case event.TypeOrderPaymentMethodSet:
		var payload PaymentMethodPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.PaymentMethod = payload.Method

	case event.TypeOrderCustomerSet:
		var payload CustomerPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Customer = payload.Customer

	case event.TypeOrderStatusChanged:
		var payload StatusChangePayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		from := state.Status
		state.Status = payload.To
		state.Timestamps.mark(payload.To, evt.Timestamp)
		if RequiresReason(from, payload.To) && payload.To != StatusCancelled {
			// Backward move: later timestamps no longer describe reality.
			state.Timestamps.clearAfter(payload.To)
		}
		state.History = append(state.History, StatusRecord{
			From:    from,
			To:      payload.To,
			Reason:  payload.Reason,
			ActorID: evt.ActorID,
			At:      evt.Timestamp,
		})

	case event.TypeOrderNoteAdded:
		var payload NotePayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Notes = append(state.Notes, Note{
			Text:    payload.Text,
			ActorID: evt.ActorID,
			At:      evt.Timestamp,
		})
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

// applyItemChanges merges additions, removals, and quantity changes into the
// line list. Additions merge into an existing line when item id and modifiers
// match; removals drop the line when the remaining quantity reaches zero.
func applyItemChanges(items []Item, payload ModifyItemsPayload) []Item {
	next := append([]Item(nil), items...)

	for _, add := range payload.Add {
		if add.Quantity <= 0 {
			continue
		}
		merged := false
		for i := range next {
			if next[i].ItemID == add.ItemID && sameModifiers(next[i].Modifiers, add.Modifiers) {
				next[i].Quantity += add.Quantity
				next[i].LineTotal = LineTotal(next[i].UnitPrice, next[i].Quantity)
				merged = true
				break
			}
		}
		if !merged {
			add.LineTotal = LineTotal(add.UnitPrice, add.Quantity)
			next = append(next, add)
		}
	}

	for _, remove := range payload.Remove {
		for i := range next {
			if next[i].ItemID != remove.ItemID {
				continue
			}
			quantity := remove.Quantity
			if quantity <= 0 || quantity > next[i].Quantity {
				quantity = next[i].Quantity
			}
			next[i].Quantity -= quantity
			next[i].LineTotal = LineTotal(next[i].UnitPrice, next[i].Quantity)
			break
		}
	}

	for _, change := range payload.Modify {
		for i := range next {
			if next[i].ItemID == change.ItemID && change.Quantity > 0 {
				next[i].Quantity = change.Quantity
				next[i].LineTotal = LineTotal(next[i].UnitPrice, next[i].Quantity)
				break
			}
		}
	}

	filtered := next[:0]
	for _, item := range next {
		if item.Quantity > 0 {
			filtered = append(filtered, item)
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
