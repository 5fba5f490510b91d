package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"gorm.io/gorm"
)

// UpdateRecord applies update to the record it targets. Side effects fire only when the
// status actually changes, so repeating a transition is a no-op.
func (s *Service) UpdateRecord(ctx context.Context, id snowflake.ID, update financedomain.RecordUpdate) (financedomain.Record, error) {
	var (
		record financedomain.Record
		err    error
	)
	switch u := update.(type) {
	case financedomain.PaymentUpdate:
		record, err = asRecord(s.updatePayment(ctx, id, u))
	case financedomain.BudgetUpdate:
		record, err = asRecord(s.updateBudget(ctx, id, u))
	case financedomain.InvoiceUpdate:
		record, err = asRecord(s.updateInvoice(ctx, id, u))
	case financedomain.RefundUpdate:
		record, err = asRecord(s.updateRefund(ctx, id, u))
	default:
		return nil, financedomain.Validation("update_record", "unsupported record type", financedomain.ErrInvalidRecordType)
	}
	return record, err
}

// asRecord keeps a failed update from leaking a typed nil through the interface.
func asRecord[T financedomain.Record](r T, err error) (financedomain.Record, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

type expenseChange int

const (
	expenseUnchanged expenseChange = iota
	expenseCreated
	expenseDeleted
)

func (s *Service) updatePayment(ctx context.Context, id snowflake.ID, u financedomain.PaymentUpdate) (*financedomain.Payment, error) {
	const op = "update_payment"
	if err := u.Validate(); err != nil {
		return nil, financedomain.Validation(op, "invalid payment update", err)
	}

	var (
		payment  *financedomain.Payment
		previous financedomain.PaymentStatus
		change   expenseChange
	)
	err := s.withLock(ctx, financedomain.RecordTypePayment, id, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			found, err := s.repo.FindPayment(ctx, tx, id)
			if err != nil {
				return err
			}
			if found == nil {
				return financedomain.NotFound(op, "payment not found", financedomain.ErrRecordNotFound)
			}
			payment = found
			previous = found.Status

			now := s.clock.Now()
			fields := map[string]any{"updated_at": now}
			if u.PaymentMethod != nil {
				payment.PaymentMethod = strings.TrimSpace(*u.PaymentMethod)
				fields["payment_method"] = payment.PaymentMethod
			}
			if u.Status != nil {
				payment.Status = *u.Status
				fields["status"] = payment.Status
			}
			payment.UpdatedAt = now
			if err := s.repo.UpdatePayment(ctx, tx, id, fields); err != nil {
				return err
			}

			if previous == payment.Status {
				return nil
			}
			switch {
			case payment.Status == financedomain.PaymentStatusApproved:
				created, err := s.ensureExpense(ctx, tx, payment, now)
				if err != nil {
					return err
				}
				if created {
					change = expenseCreated
				}
			case previous == financedomain.PaymentStatusApproved:
				deleted, err := s.repo.DeleteExpenseByPayment(ctx, tx, payment.ID)
				if err != nil {
					return err
				}
				if deleted {
					change = expenseDeleted
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	if owner, err := s.repo.FindOwner(ctx, s.db, payment.OwnerID); err == nil {
		payment.Owner = owner
	}
	if previous == payment.Status {
		return payment, nil
	}

	s.metrics.RecordTransition(ctx, string(financedomain.RecordTypePayment), string(payment.Status))
	switch change {
	case expenseCreated:
		s.metrics.RecordExpense(ctx, "create")
	case expenseDeleted:
		s.metrics.RecordExpense(ctx, "delete")
	}
	s.recordAudit(ctx, "payment.status_changed", financedomain.RecordTypePayment, payment.ID, map[string]any{
		"from": string(previous),
		"to":   string(payment.Status),
	})

	links := notificationdomain.Notice{InvoiceID: payment.InvoiceID, PaymentID: idPtr(payment.ID)}
	switch payment.Status {
	case financedomain.PaymentStatusApproved:
		s.notifyOwner(ctx, payment.OwnerID, "Payment approved",
			fmt.Sprintf("Your %s payment of %s has been approved.", payment.PaymentFor, payment.Amount.StringFixed(2)),
			notificationdomain.TypeSuccess, links)
	case financedomain.PaymentStatusRejected:
		s.notifyOwner(ctx, payment.OwnerID, "Payment rejected",
			fmt.Sprintf("Your %s payment of %s has been rejected.", payment.PaymentFor, payment.Amount.StringFixed(2)),
			notificationdomain.TypeError, links)
	}
	return payment, nil
}

// ensureExpense creates the payment's expense unless one already exists.
func (s *Service) ensureExpense(ctx context.Context, tx *gorm.DB, payment *financedomain.Payment, now time.Time) (bool, error) {
	existing, err := s.repo.FindExpenseByPayment(ctx, tx, payment.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	expense := &financedomain.Expense{
		ID:           s.genID.Generate(),
		PaymentID:    payment.ID,
		OwnerID:      payment.OwnerID,
		Category:     payment.PaymentFor.ExpenseCategory(),
		Icon:         payment.PaymentFor.ExpenseIcon(),
		Amount:       payment.Amount,
		Description:  expenseDescription(payment),
		RefundStatus: payment.RefundStatus,
		CreatedAt:    now,
	}
	if err := s.repo.InsertExpense(ctx, tx, expense); err != nil {
		return false, err
	}
	return true, nil
}

func expenseDescription(p *financedomain.Payment) string {
	for _, key := range []string{"productName", "ticketName"} {
		if v, ok := p.Details[key].(string); ok && v != "" {
			return fmt.Sprintf("%s: %s", p.PaymentFor.ExpenseCategory(), v)
		}
	}
	return fmt.Sprintf("%s via %s", p.PaymentFor.ExpenseCategory(), p.PaymentMethod)
}

func (s *Service) updateRefund(ctx context.Context, id snowflake.ID, u financedomain.RefundUpdate) (*financedomain.Refund, error) {
	const op = "update_refund"
	if err := u.Validate(); err != nil {
		return nil, financedomain.Validation(op, "invalid refund update", err)
	}

	var (
		refund   *financedomain.Refund
		previous financedomain.RefundStatus
	)
	err := s.withLock(ctx, financedomain.RecordTypeRefund, id, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			found, err := s.repo.FindRefund(ctx, tx, id)
			if err != nil {
				return err
			}
			if found == nil {
				return financedomain.NotFound(op, "refund not found", financedomain.ErrRecordNotFound)
			}
			refund = found
			previous = found.Status

			now := s.clock.Now()
			fields := map[string]any{"updated_at": now}
			if u.Reason != nil {
				refund.Reason = strings.TrimSpace(*u.Reason)
				fields["reason"] = refund.Reason
			}
			if u.Status != nil {
				refund.Status = *u.Status
				fields["status"] = refund.Status
			}
			refund.UpdatedAt = now
			if err := s.repo.UpdateRefund(ctx, tx, id, fields); err != nil {
				return err
			}

			if previous == refund.Status || refund.PaymentID == nil {
				return nil
			}
			status := string(refund.Status)
			if err := s.repo.SetPaymentRefund(ctx, tx, *refund.PaymentID, idPtr(refund.ID), &status, now); err != nil {
				return err
			}
			return s.repo.SetExpenseRefundStatus(ctx, tx, *refund.PaymentID, &status)
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if previous == refund.Status {
		return refund, nil
	}

	s.metrics.RecordTransition(ctx, string(financedomain.RecordTypeRefund), string(refund.Status))
	s.recordAudit(ctx, "refund.status_changed", financedomain.RecordTypeRefund, refund.ID, map[string]any{
		"from": string(previous),
		"to":   string(refund.Status),
	})

	links := notificationdomain.Notice{RefundID: idPtr(refund.ID), PaymentID: refund.PaymentID}
	switch refund.Status {
	case financedomain.RefundStatusApproved:
		s.notifyOwner(ctx, refund.OwnerID, "Refund approved",
			fmt.Sprintf("Your refund of %s for %s has been approved.", refund.RefundAmount.StringFixed(2), refund.InvoiceNumber),
			notificationdomain.TypeSuccess, links)
	case financedomain.RefundStatusRejected:
		s.notifyOwner(ctx, refund.OwnerID, "Refund rejected",
			fmt.Sprintf("Your refund of %s for %s has been rejected.", refund.RefundAmount.StringFixed(2), refund.InvoiceNumber),
			notificationdomain.TypeError, links)
	}
	return refund, nil
}

func (s *Service) updateBudget(ctx context.Context, id snowflake.ID, u financedomain.BudgetUpdate) (*financedomain.Budget, error) {
	const op = "update_budget"
	if err := u.Validate(); err != nil {
		return nil, financedomain.Validation(op, "invalid budget update", err)
	}

	var budget *financedomain.Budget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindBudget(ctx, tx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return financedomain.NotFound(op, "budget not found", financedomain.ErrRecordNotFound)
		}
		budget = found

		now := s.clock.Now()
		fields := map[string]any{"last_updated": now}
		if u.AllocatedBudget != nil {
			budget.AllocatedBudget = *u.AllocatedBudget
			fields["allocated_budget"] = budget.AllocatedBudget
		}
		if u.RemainingBudget != nil {
			budget.RemainingBudget = *u.RemainingBudget
			fields["remaining_budget"] = budget.RemainingBudget
		}
		if u.CurrentSpend != nil {
			budget.CurrentSpend = *u.CurrentSpend
			fields["current_spend"] = budget.CurrentSpend
		}
		if u.Status != nil {
			budget.Status = *u.Status
			fields["status"] = budget.Status
		}
		if u.Reason != nil {
			budget.Reason = strings.TrimSpace(*u.Reason)
			fields["reason"] = budget.Reason
		}
		budget.LastUpdated = now
		return s.repo.UpdateBudget(ctx, tx, id, fields)
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.recordAudit(ctx, "budget.updated", financedomain.RecordTypeBudget, budget.ID, map[string]any{
		"status": string(budget.Status),
	})
	return budget, nil
}

func (s *Service) updateInvoice(ctx context.Context, id snowflake.ID, u financedomain.InvoiceUpdate) (*financedomain.Invoice, error) {
	const op = "update_invoice"
	if err := u.Validate(); err != nil {
		return nil, financedomain.Validation(op, "invalid invoice update", err)
	}

	var invoice *financedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return financedomain.NotFound(op, "invoice not found", financedomain.ErrRecordNotFound)
		}
		invoice = found
		if invoice.PaymentStatus == *u.PaymentStatus {
			return nil
		}

		now := s.clock.Now()
		invoice.PaymentStatus = *u.PaymentStatus
		invoice.UpdatedAt = now
		return s.repo.UpdateInvoice(ctx, tx, id, map[string]any{
			"payment_status": invoice.PaymentStatus,
			"updated_at":     now,
		})
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.recordAudit(ctx, "invoice.updated", financedomain.RecordTypeInvoice, invoice.ID, map[string]any{
		"paymentStatus": string(invoice.PaymentStatus),
	})
	return invoice, nil
}
