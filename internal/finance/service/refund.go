package service

import (
	"context"
	"fmt"
	"strings"

	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"gorm.io/gorm"
)

// RequestRefund records a refund and its ledger row. When a payment is found, by PaymentID or
// behind the invoice number, the refund is bounded by the payment amount and its pending status is
// mirrored onto the payment and any expense.
func (s *Service) RequestRefund(ctx context.Context, req financedomain.RefundRequest) (*financedomain.RefundResult, error) {
	const op = "request_refund"

	user, err := s.actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !req.RefundAmount.IsPositive() {
		return nil, financedomain.Validation(op, "refundAmount must be greater than zero", financedomain.ErrInvalidAmount)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, financedomain.Validation(op, "reason is required", financedomain.ErrMissingReason)
	}

	var payment *financedomain.Payment
	invoiceNumber := strings.TrimSpace(req.InvoiceNumber)
	switch {
	case req.PaymentID != nil:
		payment, err = s.repo.FindPayment(ctx, s.db, *req.PaymentID)
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
		if payment == nil {
			return nil, financedomain.NotFound(op, "payment not found", financedomain.ErrRecordNotFound)
		}
		if invoiceNumber == "" && payment.InvoiceID != nil {
			invoice, err := s.repo.FindInvoice(ctx, s.db, *payment.InvoiceID)
			if err != nil {
				return nil, s.fail(ctx, op, err)
			}
			if invoice != nil {
				invoiceNumber = invoice.InvoiceNumber
			}
		}
	case invoiceNumber != "":
		// An invoice without a recorded payment still accepts an unlinked refund.
		payment, err = s.repo.FindPaymentByInvoiceNumber(ctx, s.db, invoiceNumber)
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
	}
	if payment != nil && req.RefundAmount.GreaterThan(payment.Amount) {
		return nil, financedomain.Validation(op,
			fmt.Sprintf("refundAmount %s exceeds payment amount %s", req.RefundAmount.StringFixed(2), payment.Amount.StringFixed(2)),
			financedomain.ErrRefundExceedsPayment)
	}
	if invoiceNumber == "" {
		return nil, financedomain.Validation(op, "invoiceNumber is required", financedomain.ErrMissingInvoiceNumber)
	}

	stored, err := s.storeAttachment(ctx, op, req.Attachment, attachmentdomain.FolderRefundReceipts)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	refund := &financedomain.Refund{
		ID:            s.genID.Generate(),
		OwnerID:       user.ID,
		RefundAmount:  req.RefundAmount,
		Reason:        reason,
		InvoiceNumber: invoiceNumber,
		Status:        financedomain.RefundStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if payment != nil {
		refund.PaymentID = idPtr(payment.ID)
	}
	if stored != nil {
		refund.AttachmentURL = strPtr(stored.URL)
		refund.AttachmentProvider = strPtr(stored.Provider)
	}

	input := ledgerdomain.RecordInput{
		Type:     ledgerdomain.TransactionTypeRefund,
		Amount:   refund.RefundAmount,
		Details:  fmt.Sprintf("Refund for %s: %s", invoiceNumber, reason),
		UserID:   idPtr(user.ID),
		SourceID: idPtr(refund.ID),
		Date:     now,
	}
	if payment != nil {
		input.InvoiceID = payment.InvoiceID
	}

	var transaction *ledgerdomain.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertRefund(ctx, tx, refund); err != nil {
			return err
		}
		recorded, err := s.ledger.Record(ctx, tx, input)
		if err != nil {
			return err
		}
		transaction = recorded

		if payment == nil {
			return nil
		}
		status := string(refund.Status)
		if err := s.repo.SetPaymentRefund(ctx, tx, payment.ID, idPtr(refund.ID), &status, now); err != nil {
			return err
		}
		return s.repo.SetExpenseRefundStatus(ctx, tx, payment.ID, &status)
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.recordAudit(ctx, "refund.requested", financedomain.RecordTypeRefund, refund.ID, map[string]any{
		"invoiceNumber": invoiceNumber,
		"refundAmount":  refund.RefundAmount.StringFixed(2),
	})

	links := notificationdomain.Notice{RefundID: idPtr(refund.ID), PaymentID: refund.PaymentID}
	s.notifyFinance(ctx, fmt.Sprintf("Refund of %s requested by %s for %s",
		refund.RefundAmount.StringFixed(2), user.FullName, invoiceNumber), links)

	ack := links
	ack.UserID = idPtr(user.ID)
	ack.Email = user.Email
	ack.Name = user.FullName
	ack.Subject = "Refund request received"
	ack.Message = fmt.Sprintf("Your refund request of %s for %s is pending review.", refund.RefundAmount.StringFixed(2), invoiceNumber)
	ack.Type = notificationdomain.TypeInfo
	s.notify(ctx, ack)

	return &financedomain.RefundResult{Refund: refund, Transaction: transaction}, nil
}
