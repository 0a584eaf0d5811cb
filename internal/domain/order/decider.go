package order

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/brigade/internal/domain/command"
	"github.com/louisbranch/brigade/internal/domain/event"
)

// Command types accepted by the order decider.
const (
	CommandTypeStart            command.Type = "order.start"
	CommandTypeModifyItems      command.Type = "order.modify_items"
	CommandTypeValidateItems    command.Type = "order.validate_items"
	CommandTypeSetPromotions    command.Type = "order.set_promotions"
	CommandTypeCalculatePrice   command.Type = "order.calculate_price"
	CommandTypeSetPaymentMethod command.Type = "order.set_payment_method"
	CommandTypeSetCustomer      command.Type = "order.set_customer"
	CommandTypeConfirm          command.Type = "order.confirm"
	CommandTypeCancel           command.Type = "order.cancel"
	CommandTypeChangeStatus     command.Type = "order.change_status"
	CommandTypeAddNote          command.Type = "order.add_note"
)

// Rejection codes emitted by the order decider.
const (
	RejectionCodeAlreadyStarted     = "ORDER_ALREADY_STARTED"
	RejectionCodeNotStarted         = "ORDER_NOT_STARTED"
	RejectionCodeTerminal           = "ORDER_TERMINAL"
	RejectionCodeStaffIDRequired    = "ORDER_STAFF_ID_REQUIRED"
	RejectionCodeServingTypeInvalid = "ORDER_SERVING_TYPE_INVALID"
	RejectionCodeItemsEmpty         = "ORDER_ITEMS_EMPTY"
	RejectionCodeItemQtyInvalid     = "ORDER_ITEM_QUANTITY_INVALID"
	RejectionCodeStatusDisallowsOp  = "ORDER_STATUS_DISALLOWS_OPERATION"
	RejectionCodeRemovalsNotAllowed = "ORDER_REMOVALS_NOT_ALLOWED"
	RejectionCodeSubtotalMismatch   = "ORDER_SUBTOTAL_MISMATCH"
	RejectionCodeNotValidated       = "ORDER_NOT_VALIDATED"
	RejectionCodeTaxRateInvalid     = "ORDER_TAX_RATE_INVALID"
	RejectionCodePaymentEmpty       = "ORDER_PAYMENT_METHOD_EMPTY"
	RejectionCodeReasonRequired     = "ORDER_REASON_REQUIRED"
	RejectionCodeStatusInvalid      = "ORDER_STATUS_INVALID"
	RejectionCodeStatusTransition   = "ORDER_INVALID_STATUS_TRANSITION"
	RejectionCodeDeliveryOnly       = "ORDER_DELIVERY_STATUS_DENIED"
	RejectionCodeNoteEmpty          = "ORDER_NOTE_EMPTY"
	RejectionCodeCommandUnsupported = "ORDER_COMMAND_UNSUPPORTED"
)

// statusesAllowingItemChanges gates which lifecycle states accept item edits.
// Once preparing has begun only additions are accepted; removals would desync
// the kitchen.
var statusesAllowingItemChanges = map[Status]bool{
	StatusDraft:     true,
	StatusPlaced:    true,
	StatusConfirmed: true,
	StatusPreparing: true,
}

// Decide returns the decision for an order command against current state.
// Decide is pure: it never touches storage and never mutates state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}

	if cmd.Type == CommandTypeStart {
		return decideStart(state, cmd, now)
	}

	// Every other command requires an existing, started order.
	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeNotStarted,
			Message: "order does not exist",
		})
	}

	switch cmd.Type {
	case CommandTypeModifyItems:
		return decideModifyItems(state, cmd, now)
	case CommandTypeValidateItems:
		return decideValidateItems(state, cmd, now)
	case CommandTypeSetPromotions:
		return decideSetPromotions(state, cmd, now)
	case CommandTypeCalculatePrice:
		return decideCalculatePrice(state, cmd, now)
	case CommandTypeSetPaymentMethod:
		return decideSetPaymentMethod(state, cmd, now)
	case CommandTypeSetCustomer:
		return decideSetCustomer(state, cmd, now)
	case CommandTypeConfirm:
		return decideChangeStatus(state, cmd, StatusConfirmed, "", now)
	case CommandTypeCancel:
		var payload CancelPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		return decideChangeStatus(state, cmd, StatusCancelled, payload.Reason, now)
	case CommandTypeChangeStatus:
		var payload ChangeStatusPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		target, ok := StatusFromLabel(string(payload.To))
		if !ok {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeStatusInvalid,
				Message: fmt.Sprintf("unknown order status: %s", payload.To),
			})
		}
		return decideChangeStatus(state, cmd, target, payload.Reason, now)
	case CommandTypeAddNote:
		return decideAddNote(state, cmd, now)
	default:
		return command.Reject(command.Rejection{
			Code:    RejectionCodeCommandUnsupported,
			Message: fmt.Sprintf("unsupported order command: %s", cmd.Type),
		})
	}
}

func decideStart(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeAlreadyStarted,
			Message: "order already exists",
		})
	}
	var payload StartPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.StaffID = strings.TrimSpace(payload.StaffID)
	if payload.StaffID == "" {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeStaffIDRequired,
			Message: "staff id is required",
		})
	}
	serving, ok := ServingTypeFromLabel(string(payload.ServingType))
	if !ok {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeServingTypeInvalid,
			Message: fmt.Sprintf("unknown serving type: %s", payload.ServingType),
		})
	}
	payload.ServingType = serving
	payload.LocationID = strings.TrimSpace(payload.LocationID)
	payload.TableNumber = strings.TrimSpace(payload.TableNumber)
	payload.SourceSessionID = strings.TrimSpace(payload.SourceSessionID)

	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderStarted, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideModifyItems(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	if !statusesAllowingItemChanges[state.Status] {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeStatusDisallowsOp,
			Message: fmt.Sprintf("items cannot be modified while %s", state.Status),
		})
	}
	var payload ModifyItemsPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	if len(payload.Add) == 0 && len(payload.Remove) == 0 && len(payload.Modify) == 0 {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeItemsEmpty,
			Message: "item modification requires at least one change",
		})
	}
	if state.Status == StatusPreparing && (len(payload.Remove) > 0 || len(payload.Modify) > 0) {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeRemovalsNotAllowed,
			Message: "cannot remove or change items once preparing has started",
		})
	}
	for _, add := range payload.Add {
		if strings.TrimSpace(add.ItemID) == "" || add.Quantity <= 0 || add.UnitPrice < 0 {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeItemQtyInvalid,
				Message: "added items need an id, a positive quantity, and a non-negative price",
			})
		}
	}
	for _, change := range append(append([]ItemChange(nil), payload.Remove...), payload.Modify...) {
		if strings.TrimSpace(change.ItemID) == "" {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeItemQtyInvalid,
				Message: "item changes need an item id",
			})
		}
	}

	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderItemsModified, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideValidateItems(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	var payload ValidateItemsPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	if len(payload.Items) == 0 {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeItemsEmpty,
			Message: "validation requires at least one item",
		})
	}
	for i := range payload.Items {
		payload.Items[i].LineTotal = LineTotal(payload.Items[i].UnitPrice, payload.Items[i].Quantity)
	}
	if computed := Subtotal(payload.Items); computed != payload.Subtotal {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeSubtotalMismatch,
			Message: fmt.Sprintf("subtotal %d does not match computed %d", payload.Subtotal, computed),
		})
	}

	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderItemsValidated, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideSetPromotions(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	var payload PromotionsPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)

	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderPromotionsSet, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideCalculatePrice(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	if !state.Validated {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeNotValidated,
			Message: "items must be validated before pricing",
		})
	}
	var payload CalculatePricePayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	if payload.TaxRateBp < 0 || payload.TaxRateBp > 10000 {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTaxRateInvalid,
			Message: fmt.Sprintf("tax rate %d bp out of range", payload.TaxRateBp),
		})
	}

	subtotal := state.Money.Subtotal
	discount := state.Promotions.AppliedDiscount()
	tax := Tax(subtotal, payload.TaxRateBp)
	price := PricePayload{
		Subtotal:  subtotal,
		TaxRateBp: payload.TaxRateBp,
		Tax:       tax,
		Discount:  discount,
		Total:     Total(subtotal, tax, discount),
		Currency:  strings.TrimSpace(payload.Currency),
	}

	payloadJSON, _ := json.Marshal(price)
	evt := command.NewEvent(cmd, event.TypeOrderPriceCalculated, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideSetPaymentMethod(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	var payload PaymentMethodPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.Method = strings.TrimSpace(payload.Method)
	if payload.Method == "" {
		return command.Reject(command.Rejection{
			Code:    RejectionCodePaymentEmpty,
			Message: "payment method is required",
		})
	}

	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderPaymentMethodSet, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideSetCustomer(state State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	var payload CustomerPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)

	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderCustomerSet, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

func decideAddNote(state State, cmd command.Command, now func() time.Time) command.Decision {
	var payload NotePayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.Text = strings.TrimSpace(payload.Text)
	if payload.Text == "" {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeNoteEmpty,
			Message: "note text is required",
		})
	}

	// Notes are accepted in every status, terminal included: the audit trail
	// outlives the order lifecycle.
	payloadJSON, _ := json.Marshal(payload)
	evt := command.NewEvent(cmd, event.TypeOrderNoteAdded, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}

// decideChangeStatus covers confirm, cancel, and explicit status transitions.
func decideChangeStatus(state State, cmd command.Command, target Status, reason string, now func() time.Time) command.Decision {
	if state.Status.IsTerminal() {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeTerminal,
			Message: "order is in a terminal status",
		})
	}
	if cmd.Type == CommandTypeConfirm {
		if state.Status != StatusDraft && state.Status != StatusPlaced {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeStatusTransition,
				Message: fmt.Sprintf("order cannot be confirmed while %s", state.Status),
			})
		}
		if len(state.Items) == 0 {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeItemsEmpty,
				Message: "order has no items to confirm",
			})
		}
	}
	if (target == StatusDelivering || target == StatusDelivered) && state.ServingType != ServingTypeDelivery {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeDeliveryOnly,
			Message: fmt.Sprintf("%s is only reachable for delivery orders", target),
		})
	}
	if !CanTransition(state.Status, target, state.ServingType) {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeStatusTransition,
			Message: fmt.Sprintf("order status transition not allowed: %s -> %s", state.Status, target),
		})
	}
	reason = strings.TrimSpace(reason)
	if RequiresReason(state.Status, target) && reason == "" {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeReasonRequired,
			Message: fmt.Sprintf("a reason is required for %s -> %s", state.Status, target),
		})
	}

	payloadJSON, _ := json.Marshal(StatusChangePayload{
		From:   state.Status,
		To:     target,
		Reason: reason,
	})
	evt := command.NewEvent(cmd, event.TypeOrderStatusChanged, payloadJSON)
	evt.Timestamp = now().UTC()
	return command.Accept(evt)
}
