package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/brigade/internal/domain/command"
	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
)

// Command types accepted by the session decider.
const (
	CommandTypeStart             command.Type = "session.start"
	CommandTypeAddCartItem       command.Type = "session.add_cart_item"
	CommandTypeRemoveCartItem    command.Type = "session.remove_cart_item"
	CommandTypeChoosePayment     command.Type = "session.choose_payment_method"
	CommandTypeRecordInteraction command.Type = "session.record_interaction"
	CommandTypeMarkConverted     command.Type = "session.mark_converted"
)

// Rejection codes emitted by the session decider.
const (
	RejectionCodeAlreadyStarted     = "SESSION_ALREADY_STARTED"
	RejectionCodeNotStarted         = "SESSION_NOT_STARTED"
	RejectionCodeAlreadyConverted   = "SESSION_ALREADY_CONVERTED"
	RejectionCodeServingTypeInvalid = "SESSION_SERVING_TYPE_INVALID"
	RejectionCodeCartItemInvalid    = "SESSION_CART_ITEM_INVALID"
	RejectionCodeCartEmpty          = "SESSION_CART_EMPTY"
	RejectionCodePaymentEmpty       = "SESSION_PAYMENT_METHOD_EMPTY"
	RejectionCodeInteractionInvalid = "SESSION_INTERACTION_INVALID"
	RejectionCodeOrderIDRequired    = "SESSION_ORDER_ID_REQUIRED"
	RejectionCodeCommandUnsupported = "SESSION_COMMAND_UNSUPPORTED"
)

// Decide returns the decision for a session command against current state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}

	if cmd.Type == CommandTypeStart {
		if state.Created {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeAlreadyStarted,
				Message: "session already exists",
			})
		}
		var payload StartPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		serving, ok := order.ServingTypeFromLabel(string(payload.ServingType))
		if !ok {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeServingTypeInvalid,
				Message: fmt.Sprintf("unknown serving type: %s", payload.ServingType),
			})
		}
		payload.ServingType = serving
		payload.CustomerID = strings.TrimSpace(payload.CustomerID)
		payload.LocationID = strings.TrimSpace(payload.LocationID)
		payload.TableNumber = strings.TrimSpace(payload.TableNumber)

		payloadJSON, _ := json.Marshal(payload)
		evt := command.NewEvent(cmd, event.TypeSessionStarted, payloadJSON)
		evt.Timestamp = now().UTC()
		return command.Accept(evt)
	}

	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeNotStarted,
			Message: "session does not exist",
		})
	}
	// Interactions remain recordable after conversion for analytics; everything
	// else is frozen.
	if state.Converted && cmd.Type != CommandTypeRecordInteraction {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeAlreadyConverted,
			Message: "session has already been converted to an order",
		})
	}

	switch cmd.Type {
	case CommandTypeAddCartItem:
		var payload CartItemAddedPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.ItemID = strings.TrimSpace(payload.ItemID)
		if payload.ItemID == "" || payload.Quantity <= 0 {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeCartItemInvalid,
				Message: "cart items need an item id and a positive quantity",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		evt := command.NewEvent(cmd, event.TypeSessionCartItemAdded, payloadJSON)
		evt.Timestamp = now().UTC()
		return command.Accept(evt)

	case CommandTypeRemoveCartItem:
		var payload CartItemRemovedPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.ItemID = strings.TrimSpace(payload.ItemID)
		if payload.ItemID == "" {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeCartItemInvalid,
				Message: "cart removal needs an item id",
			})
		}
		if !cartContains(state.Cart, payload.ItemID) {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeCartItemInvalid,
				Message: fmt.Sprintf("item %s is not in the cart", payload.ItemID),
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		evt := command.NewEvent(cmd, event.TypeSessionCartItemRemoved, payloadJSON)
		evt.Timestamp = now().UTC()
		return command.Accept(evt)

	case CommandTypeChoosePayment:
		var payload PaymentMethodChosenPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Method = strings.TrimSpace(payload.Method)
		if payload.Method == "" {
			return command.Reject(command.Rejection{
				Code:    RejectionCodePaymentEmpty,
				Message: "payment method is required",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		evt := command.NewEvent(cmd, event.TypeSessionPaymentMethodChosen, payloadJSON)
		evt.Timestamp = now().UTC()
		return command.Accept(evt)

	case CommandTypeRecordInteraction:
		var payload InteractionPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Kind = strings.TrimSpace(payload.Kind)
		switch payload.Kind {
		case InteractionKindSearch, InteractionKindCategoryView, InteractionKindItemView:
		default:
			return command.Reject(command.Rejection{
				Code:    RejectionCodeInteractionInvalid,
				Message: fmt.Sprintf("unknown interaction kind: %s", payload.Kind),
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		evt := command.NewEvent(cmd, event.TypeSessionInteractionRecorded, payloadJSON)
		evt.Timestamp = now().UTC()
		return command.Accept(evt)

	case CommandTypeMarkConverted:
		if len(state.Cart) == 0 {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeCartEmpty,
				Message: "cannot convert a session with an empty cart",
			})
		}
		var payload ConvertedPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.OrderID = strings.TrimSpace(payload.OrderID)
		if payload.OrderID == "" {
			return command.Reject(command.Rejection{
				Code:    RejectionCodeOrderIDRequired,
				Message: "converted sessions must reference the created order",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		evt := command.NewEvent(cmd, event.TypeSessionConverted, payloadJSON)
		evt.Timestamp = now().UTC()
		return command.Accept(evt)

	default:
		return command.Reject(command.Rejection{
			Code:    RejectionCodeCommandUnsupported,
			Message: fmt.Sprintf("unsupported session command: %s", cmd.Type),
		})
	}
}

func cartContains(cart []CartLine, itemID string) bool {
	for _, line := range cart {
		if line.ItemID == itemID {
			return true
		}
	}
	return false
}
