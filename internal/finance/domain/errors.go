package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures for transport mapping.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindForbidden    Kind = "forbidden"
	KindDependency   Kind = "dependency"
	KindInternal     Kind = "internal"
)

var (
	ErrMissingActor          = errors.New("missing_acting_user")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrMissingPaymentMethod  = errors.New("missing_payment_method")
	ErrInvalidPaymentFor     = errors.New("invalid_payment_for")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidRecordType     = errors.New("invalid_record_type")
	ErrInvalidUpdate         = errors.New("invalid_update")
	ErrInvoiceFieldImmutable = errors.New("invoice_field_immutable")
	ErrRecordNotFound        = errors.New("record_not_found")
	ErrEventNotFound         = errors.New("event_not_found")
	ErrEventNotConfirmed     = errors.New("event_not_confirmed")
	ErrRefundExceedsPayment  = errors.New("refund_exceeds_payment")
	ErrMissingReason         = errors.New("missing_reason")
	ErrMissingInvoiceNumber  = errors.New("missing_invoice_number")
	ErrRecordBusy            = errors.New("record_busy")
	ErrAttachmentFailed      = errors.New("attachment_failed")
	ErrProcessingFailed      = errors.New("processing_failed")
)

// Error carries a Kind and a human readable message alongside the cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string, err error) error {
	return newError(KindValidation, op, message, err)
}

func NotFound(op, message string, err error) error {
	return newError(KindNotFound, op, message, err)
}

func InvalidState(op, message string, err error) error {
	return newError(KindInvalidState, op, message, err)
}

func Forbidden(op, message string, err error) error {
	return newError(KindForbidden, op, message, err)
}

func Dependency(op, message string, err error) error {
	return newError(KindDependency, op, message, err)
}

func Internal(op, message string, err error) error {
	return newError(KindInternal, op, message, err)
}

// KindOf returns the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
