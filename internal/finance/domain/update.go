package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type RecordType string

const (
	RecordTypePayment RecordType = "payment"
	RecordTypeBudget  RecordType = "budget"
	RecordTypeInvoice RecordType = "invoice"
	RecordTypeRefund  RecordType = "refund"
)

func ParseRecordType(raw string) (RecordType, error) {
	switch t := RecordType(strings.ToLower(strings.TrimSpace(raw))); t {
	case RecordTypePayment, RecordTypeBudget, RecordTypeInvoice, RecordTypeRefund:
		return t, nil
	}
	return "", Validation("parse_record_type", fmt.Sprintf("unknown record type %q", raw), ErrInvalidRecordType)
}

// RecordUpdate is the closed set of update payloads, one variant per record type.
type RecordUpdate interface {
	Target() RecordType
	sealed()
}

type PaymentUpdate struct {
	Status        *PaymentStatus `json:"status"`
	PaymentMethod *string        `json:"paymentMethod"`
}

type BudgetUpdate struct {
	AllocatedBudget *decimal.Decimal `json:"allocatedBudget"`
	RemainingBudget *decimal.Decimal `json:"remainingBudget"`
	CurrentSpend    *decimal.Decimal `json:"currentSpend"`
	Status          *BudgetStatus    `json:"status"`
	Reason          *string          `json:"reason"`
}

// InvoiceUpdate carries the only mutable invoice field.
type InvoiceUpdate struct {
	PaymentStatus *InvoiceStatus `json:"paymentStatus"`
}

type RefundUpdate struct {
	Status *RefundStatus `json:"status"`
	Reason *string       `json:"reason"`
}

func (PaymentUpdate) Target() RecordType { return RecordTypePayment }
func (BudgetUpdate) Target() RecordType  { return RecordTypeBudget }
func (InvoiceUpdate) Target() RecordType { return RecordTypeInvoice }
func (RefundUpdate) Target() RecordType  { return RecordTypeRefund }

func (PaymentUpdate) sealed() {}
func (BudgetUpdate) sealed()  {}
func (InvoiceUpdate) sealed() {}
func (RefundUpdate) sealed()  {}

func (u PaymentUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrInvalidStatus, *u.Status)
	}
	if u.PaymentMethod != nil && strings.TrimSpace(*u.PaymentMethod) == "" {
		return ErrMissingPaymentMethod
	}
	if u.Status == nil && u.PaymentMethod == nil {
		return ErrInvalidUpdate
	}
	return nil
}

func (u BudgetUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: budget status %q", ErrInvalidStatus, *u.Status)
	}
	for _, amount := range []*decimal.Decimal{u.AllocatedBudget, u.RemainingBudget, u.CurrentSpend} {
		if amount != nil && amount.IsNegative() {
			return ErrInvalidAmount
		}
	}
	if u.AllocatedBudget == nil && u.RemainingBudget == nil && u.CurrentSpend == nil && u.Status == nil && u.Reason == nil {
		return ErrInvalidUpdate
	}
	return nil
}

func (u InvoiceUpdate) Validate() error {
	if u.PaymentStatus == nil {
		return ErrInvalidUpdate
	}
	if !u.PaymentStatus.Valid() {
		return fmt.Errorf("%w: invoice payment status %q", ErrInvalidStatus, *u.PaymentStatus)
	}
	return nil
}

func (u RefundUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: refund status %q", ErrInvalidStatus, *u.Status)
	}
	if u.Reason != nil && strings.TrimSpace(*u.Reason) == "" {
		return ErrMissingReason
	}
	if u.Status == nil && u.Reason == nil {
		return ErrInvalidUpdate
	}
	return nil
}

// ParseRecordUpdate decodes body into the variant for recordType. Fields outside the variant
// are rejected, which is what keeps every invoice field except paymentStatus immutable.
func ParseRecordUpdate(recordType string, body []byte) (RecordUpdate, error) {
	const op = "parse_record_update"

	t, err := ParseRecordType(recordType)
	if err != nil {
		return nil, err
	}

	var (
		update    RecordUpdate
		validate  func() error
		decodeErr error
	)
	switch t {
	case RecordTypePayment:
		var u PaymentUpdate
		decodeErr = decodeStrict(body, &u)
		update, validate = u, u.Validate
	case RecordTypeBudget:
		var u BudgetUpdate
		decodeErr = decodeStrict(body, &u)
		update, validate = u, u.Validate
	case RecordTypeInvoice:
		var u InvoiceUpdate
		decodeErr = decodeStrict(body, &u)
		if decodeErr != nil && strings.Contains(decodeErr.Error(), "unknown field") {
			return nil, Validation(op, "only paymentStatus can be changed on an invoice", ErrInvoiceFieldImmutable)
		}
		update, validate = u, u.Validate
	case RecordTypeRefund:
		var u RefundUpdate
		decodeErr = decodeStrict(body, &u)
		update, validate = u, u.Validate
	}
	if decodeErr != nil {
		return nil, Validation(op, "invalid update payload", fmt.Errorf("%w: %v", ErrInvalidUpdate, decodeErr))
	}
	if err := validate(); err != nil {
		return nil, Validation(op, "invalid update payload", err)
	}
	return update, nil
}

func decodeStrict(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
