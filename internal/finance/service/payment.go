package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/identity"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/pkg/db"
	"gorm.io/gorm"
)

// invoiceNumberAttempts bounds retries when two payments land on the same millisecond.
const invoiceNumberAttempts = 3

// MakePayment writes an Invoice, its Payment and the ledger Transaction as one unit.
// fields decides which auxiliary values are kept and the default purpose.
func (s *Service) MakePayment(ctx context.Context, fields financedomain.FieldSet, req financedomain.PaymentRequest) (*financedomain.PaymentResult, error) {
	const op = "make_payment"

	user, err := s.actor(ctx, op)
	if err != nil {
		return nil, err
	}
	paymentFor := financedomain.PaymentFor(strings.ToLower(strings.TrimSpace(string(req.PaymentFor))))
	if paymentFor == "" {
		paymentFor = fields.DefaultFor
	}
	if !paymentFor.Valid() {
		return nil, financedomain.Validation(op, "paymentFor must be one of merchandise, package, ticket, other", financedomain.ErrInvalidPaymentFor)
	}
	if !req.Amount.IsPositive() {
		return nil, financedomain.Validation(op, "amount must be greater than zero", financedomain.ErrInvalidAmount)
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, financedomain.Validation(op, "paymentMethod is required", financedomain.ErrMissingPaymentMethod)
	}

	stored, err := s.storeAttachment(ctx, op, req.Attachment, attachmentdomain.FolderBankSlips)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var result *financedomain.PaymentResult
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		result, err = s.writePayment(ctx, user, paymentWrite{
			number:     invoiceNumber(now, attempt),
			paymentFor: paymentFor,
			method:     method,
			req:        req,
			fields:     fields,
			stored:     stored,
			now:        now,
		})
		if err == nil || !db.IsDuplicateKeyErr(err) {
			break
		}
	}
	if err != nil {
		// The stored attachment, if any, is left in place.
		return nil, s.fail(ctx, op, err)
	}

	result.Payment.Owner = &financedomain.Owner{ID: user.ID, FullName: user.FullName, Email: user.Email}

	s.metrics.RecordPaymentCreated(ctx, string(paymentFor))
	s.recordAudit(ctx, "payment.created", financedomain.RecordTypePayment, result.Payment.ID, map[string]any{
		"invoiceNumber": result.Invoice.InvoiceNumber,
		"amount":        result.Payment.Amount.StringFixed(2),
		"paymentFor":    string(paymentFor),
		"fieldSet":      fields.Name,
		"details":       map[string]any(result.Payment.Details),
	})

	links := notificationdomain.Notice{InvoiceID: idPtr(result.Invoice.ID), PaymentID: idPtr(result.Payment.ID)}
	s.notifyFinance(ctx, fmt.Sprintf("New %s payment of %s submitted by %s (%s)",
		paymentFor, result.Payment.Amount.StringFixed(2), user.FullName, result.Invoice.InvoiceNumber), links)

	ack := links
	ack.UserID = idPtr(user.ID)
	ack.Email = user.Email
	ack.Name = user.FullName
	ack.Subject = "Payment received"
	ack.Message = fmt.Sprintf("Your payment of %s (%s) was received and is pending review.",
		result.Payment.Amount.StringFixed(2), result.Invoice.InvoiceNumber)
	ack.Type = notificationdomain.TypeSuccess
	s.notify(ctx, ack)

	return result, nil
}

type paymentWrite struct {
	number     string
	paymentFor financedomain.PaymentFor
	method     string
	req        financedomain.PaymentRequest
	fields     financedomain.FieldSet
	stored     *attachmentdomain.Stored
	now        time.Time
}

func (s *Service) writePayment(ctx context.Context, user identity.User, w paymentWrite) (*financedomain.PaymentResult, error) {
	invoice := &financedomain.Invoice{
		ID:            s.genID.Generate(),
		InvoiceNumber: w.number,
		Amount:        w.req.Amount,
		Category:      string(w.paymentFor),
		PaymentStatus: financedomain.InvoiceStatusUnpaid,
		OwnerID:       user.ID,
		CreatedAt:     w.now,
		UpdatedAt:     w.now,
	}
	payment := &financedomain.Payment{
		ID:            s.genID.Generate(),
		InvoiceID:     idPtr(invoice.ID),
		OwnerID:       user.ID,
		Amount:        w.req.Amount,
		PaymentMethod: w.method,
		Status:        financedomain.PaymentStatusPending,
		PaymentFor:    w.paymentFor,
		Details:       w.fields.Extract(w.req.Fields),
		CreatedAt:     w.now,
		UpdatedAt:     w.now,
	}
	if w.stored != nil {
		payment.AttachmentURL = strPtr(w.stored.URL)
		payment.AttachmentProvider = strPtr(w.stored.Provider)
	}

	var transaction *ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		recorded, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordInput{
			Type:      ledgerdomain.TransactionTypePayment,
			Amount:    payment.Amount,
			Details:   fmt.Sprintf("%s payment via %s (%s)", w.paymentFor, w.method, invoice.InvoiceNumber),
			InvoiceID: idPtr(invoice.ID),
			UserID:    idPtr(user.ID),
			SourceID:  idPtr(payment.ID),
			Date:      w.now,
		})
		if err != nil {
			return err
		}
		transaction = recorded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &financedomain.PaymentResult{Invoice: invoice, Payment: payment, Transaction: transaction}, nil
}

// invoiceNumber is INV-<unix millis>, suffixed on retries.
func invoiceNumber(now time.Time, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("INV-%d", now.UnixMilli())
	}
	return fmt.Sprintf("INV-%d-%d", now.UnixMilli(), attempt)
}
