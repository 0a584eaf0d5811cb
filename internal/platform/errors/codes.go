// Package errors provides structured error handling for the order engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeValidation             Code = "VALIDATION"
	CodeOrderIDRequired        Code = "ORDER_ID_REQUIRED"
	CodeOrderStaffIDRequired   Code = "ORDER_STAFF_ID_REQUIRED"
	CodeOrderItemsEmpty        Code = "ORDER_ITEMS_EMPTY"
	CodeOrderItemQtyInvalid    Code = "ORDER_ITEM_QUANTITY_INVALID"
	CodeOrderReasonRequired    Code = "ORDER_REASON_REQUIRED"
	CodeSessionIDRequired      Code = "SESSION_ID_REQUIRED"
	CodeSessionCartItemInvalid Code = "SESSION_CART_ITEM_INVALID"

	// State conflict errors
	CodeStateConflict             Code = "STATE_CONFLICT"
	CodeOrderAlreadyStarted       Code = "ORDER_ALREADY_STARTED"
	CodeOrderNotStarted           Code = "ORDER_NOT_STARTED"
	CodeOrderStatusTransition     Code = "ORDER_INVALID_STATUS_TRANSITION"
	CodeOrderStatusDisallowsOp    Code = "ORDER_STATUS_DISALLOWS_OPERATION"
	CodeOrderTerminal             Code = "ORDER_TERMINAL"
	CodeSessionAlreadyConverted   Code = "SESSION_ALREADY_CONVERTED"
	CodeSessionCartEmpty          Code = "SESSION_CART_EMPTY"
	CodeOrderInsufficientStock    Code = "ORDER_INSUFFICIENT_STOCK"
	CodeOrderRemovalsNotAllowed   Code = "ORDER_REMOVALS_NOT_ALLOWED"
	CodeOrderDeliveryStatusDenied Code = "ORDER_DELIVERY_STATUS_DENIED"

	// Concurrency errors
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"

	// Storage errors
	CodeNotFound  Code = "NOT_FOUND"
	CodeIntegrity Code = "INTEGRITY"

	// Collaborator errors
	CodeDependency         Code = "DEPENDENCY"
	CodeCatalogUnavailable Code = "CATALOG_UNAVAILABLE"
)

// GRPCCode maps the domain code onto a canonical gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeNotFound:
		return codes.NotFound
	case CodeConcurrencyConflict:
		return codes.Aborted
	case CodeStateConflict, CodeOrderAlreadyStarted, CodeOrderNotStarted,
		CodeOrderStatusTransition, CodeOrderStatusDisallowsOp, CodeOrderTerminal,
		CodeSessionAlreadyConverted, CodeSessionCartEmpty, CodeOrderInsufficientStock,
		CodeOrderRemovalsNotAllowed, CodeOrderDeliveryStatusDenied:
		return codes.FailedPrecondition
	case CodeValidation, CodeOrderIDRequired, CodeOrderStaffIDRequired,
		CodeOrderItemsEmpty, CodeOrderItemQtyInvalid, CodeOrderReasonRequired,
		CodeSessionIDRequired, CodeSessionCartItemInvalid:
		return codes.InvalidArgument
	case CodeDependency, CodeCatalogUnavailable:
		return codes.Unavailable
	case CodeIntegrity:
		return codes.DataLoss
	default:
		return codes.Internal
	}
}
