package payable

import (
	"fmt"

	"box-office/internal/models"
)

// CantBePaidForError is returned when payment is attempted on a payable that
// is not in progress.
type CantBePaidForError struct {
	Kind   string
	Status models.PayableStatus
}

func (e *CantBePaidForError) Error() string {
	return fmt.Sprintf("this %s can not be paid for because it is not in progress (status: %s)", e.Kind, e.Status)
}

// CantBeRefundedError is returned by refund precondition checks. Field and
// Code exist for the API layer to build structured user-facing errors.
type CantBeRefundedError struct {
	Message string
	Field   string
	Code    string
}

func (e *CantBeRefundedError) Error() string { return e.Message }

const (
	CodeRefundStatus          = "refund_bad_status"
	CodeRefundNoPayments      = "refund_no_payments"
	CodeRefundAlreadyRefunded = "refund_already_refunded"
	CodeRefundLocked          = "refund_locked"
)

type InvalidTransitionError struct {
	From models.PayableStatus
	To   models.PayableStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
