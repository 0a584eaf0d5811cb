package service

import (
	"errors"

	"github.com/louisbranch/brigade/internal/domain/command"
	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/domain/session"
	apperrors "github.com/louisbranch/brigade/internal/platform/errors"
	"github.com/louisbranch/brigade/internal/storage"
)

// rejectionCodes maps domain rejection codes onto the platform error taxonomy.
var rejectionCodes = map[string]apperrors.Code{
	order.RejectionCodeAlreadyStarted:     apperrors.CodeOrderAlreadyStarted,
	order.RejectionCodeNotStarted:         apperrors.CodeOrderNotStarted,
	order.RejectionCodeTerminal:           apperrors.CodeOrderTerminal,
	order.RejectionCodeStaffIDRequired:    apperrors.CodeOrderStaffIDRequired,
	order.RejectionCodeServingTypeInvalid: apperrors.CodeValidation,
	order.RejectionCodeItemsEmpty:         apperrors.CodeOrderItemsEmpty,
	order.RejectionCodeItemQtyInvalid:     apperrors.CodeOrderItemQtyInvalid,
	order.RejectionCodeStatusDisallowsOp:  apperrors.CodeOrderStatusDisallowsOp,
	order.RejectionCodeRemovalsNotAllowed: apperrors.CodeOrderRemovalsNotAllowed,
	order.RejectionCodeSubtotalMismatch:   apperrors.CodeIntegrity,
	order.RejectionCodeNotValidated:       apperrors.CodeStateConflict,
	order.RejectionCodeTaxRateInvalid:     apperrors.CodeValidation,
	order.RejectionCodePaymentEmpty:       apperrors.CodeValidation,
	order.RejectionCodeReasonRequired:     apperrors.CodeOrderReasonRequired,
	order.RejectionCodeStatusInvalid:      apperrors.CodeValidation,
	order.RejectionCodeStatusTransition:   apperrors.CodeOrderStatusTransition,
	order.RejectionCodeDeliveryOnly:       apperrors.CodeOrderDeliveryStatusDenied,
	order.RejectionCodeNoteEmpty:          apperrors.CodeValidation,
	order.RejectionCodeCommandUnsupported: apperrors.CodeValidation,

	session.RejectionCodeAlreadyStarted:     apperrors.CodeStateConflict,
	session.RejectionCodeNotStarted:         apperrors.CodeStateConflict,
	session.RejectionCodeAlreadyConverted:   apperrors.CodeSessionAlreadyConverted,
	session.RejectionCodeServingTypeInvalid: apperrors.CodeValidation,
	session.RejectionCodeCartItemInvalid:    apperrors.CodeSessionCartItemInvalid,
	session.RejectionCodeCartEmpty:          apperrors.CodeSessionCartEmpty,
	session.RejectionCodePaymentEmpty:       apperrors.CodeValidation,
	session.RejectionCodeInteractionInvalid: apperrors.CodeValidation,
	session.RejectionCodeOrderIDRequired:    apperrors.CodeValidation,
	session.RejectionCodeCommandUnsupported: apperrors.CodeValidation,
}

// rejectionError converts the first rejection of a decision into a platform
// error the transport layer can map onto a status code.
func rejectionError(rejections []command.Rejection) error {
	if len(rejections) == 0 {
		return apperrors.New(apperrors.CodeUnknown, "command rejected without reason")
	}
	rejection := rejections[0]
	code, ok := rejectionCodes[rejection.Code]
	if !ok {
		code = apperrors.CodeUnknown
	}
	return apperrors.WithMetadata(code, rejection.Message, map[string]string{
		"rejection_code": rejection.Code,
	})
}

// storageError converts storage failures into platform errors.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case storage.IsConflict(err):
		return apperrors.Wrap(apperrors.CodeConcurrencyConflict, "aggregate head moved, reload and retry", err)
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "record not found", err)
	default:
		return err
	}
}
