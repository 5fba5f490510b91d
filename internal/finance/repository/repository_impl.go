package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	invoices repository.Repository[domain.Invoice]
	payments repository.Repository[domain.Payment]
	budgets  repository.Repository[domain.Budget]
	refunds  repository.Repository[domain.Refund]
	expenses repository.Repository[domain.Expense]
}

func Provide() domain.Repository {
	return &repo{
		invoices: repository.ProvideStore[domain.Invoice](),
		payments: repository.ProvideStore[domain.Payment](),
		budgets:  repository.ProvideStore[domain.Budget](),
		refunds:  repository.ProvideStore[domain.Refund](),
		expenses: repository.ProvideStore[domain.Expense](),
	}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, invoice_number, amount, category, payment_status, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.Amount,
		invoice.Category,
		invoice.PaymentStatus,
		invoice.OwnerID,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, invoice_id, owner_id, amount, payment_method, status, payment_for,
			attachment_url, attachment_provider, refund_status, refund_id, details, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		payment.OwnerID,
		payment.Amount,
		payment.PaymentMethod,
		payment.Status,
		payment.PaymentFor,
		payment.AttachmentURL,
		payment.AttachmentProvider,
		payment.RefundStatus,
		payment.RefundID,
		payment.Details,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) InsertBudget(ctx context.Context, db *gorm.DB, budget *domain.Budget) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO budgets (
			id, event_id, owner_id, allocated_budget, remaining_budget, current_spend, status, reason,
			attachment_url, attachment_provider, last_updated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		budget.ID,
		budget.EventID,
		budget.OwnerID,
		budget.AllocatedBudget,
		budget.RemainingBudget,
		budget.CurrentSpend,
		budget.Status,
		budget.Reason,
		budget.AttachmentURL,
		budget.AttachmentProvider,
		budget.LastUpdated,
		budget.CreatedAt,
	).Error
}

func (r *repo) InsertRefund(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO refunds (
			id, payment_id, owner_id, refund_amount, reason, invoice_number, status,
			attachment_url, attachment_provider, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		refund.ID,
		refund.PaymentID,
		refund.OwnerID,
		refund.RefundAmount,
		refund.Reason,
		refund.InvoiceNumber,
		refund.Status,
		refund.AttachmentURL,
		refund.AttachmentProvider,
		refund.CreatedAt,
		refund.UpdatedAt,
	).Error
}

func (r *repo) InsertExpense(ctx context.Context, db *gorm.DB, expense *domain.Expense) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO expenses (id, payment_id, owner_id, category, icon, amount, description, refund_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID,
		expense.PaymentID,
		expense.OwnerID,
		expense.Category,
		expense.Icon,
		expense.Amount,
		expense.Description,
		expense.RefundStatus,
		expense.CreatedAt,
	).Error
}

func (r *repo) FindInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.invoices.FindByID(ctx, db, id)
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.payments.FindByID(ctx, db, id, repository.ForUpdate())
}

func (r *repo) FindPaymentByInvoiceNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = (SELECT id FROM invoices WHERE invoice_number = ?)", invoiceNumber).
		Take(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) FindBudget(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Budget, error) {
	return r.budgets.FindByID(ctx, db, id)
}

func (r *repo) FindRefund(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Refund, error) {
	return r.refunds.FindByID(ctx, db, id, repository.ForUpdate())
}

func (r *repo) FindExpenseByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*domain.Expense, error) {
	var expense domain.Expense
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_id, owner_id, category, icon, amount, description, refund_status, created_at
		 FROM expenses WHERE payment_id = ?`,
		paymentID,
	).Scan(&expense).Error
	if err != nil {
		return nil, err
	}
	if expense.ID == 0 {
		return nil, nil
	}
	return &expense, nil
}

func (r *repo) FindOwner(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Owner, error) {
	var owner domain.Owner
	err := db.WithContext(ctx).Raw(
		`SELECT id, full_name, email FROM users WHERE id = ?`,
		id,
	).Scan(&owner).Error
	if err != nil {
		return nil, err
	}
	if owner.ID == 0 {
		return nil, nil
	}
	return &owner, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	_, err := r.payments.Updates(ctx, db, id, fields)
	return err
}

func (r *repo) UpdateBudget(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	_, err := r.budgets.Updates(ctx, db, id, fields)
	return err
}

func (r *repo) UpdateInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	_, err := r.invoices.Updates(ctx, db, id, fields)
	return err
}

func (r *repo) UpdateRefund(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	_, err := r.refunds.Updates(ctx, db, id, fields)
	return err
}

func (r *repo) SetPaymentRefund(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, refundID *snowflake.ID, status *string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET refund_id = ?, refund_status = ?, updated_at = ? WHERE id = ?`,
		refundID, status, at, paymentID,
	).Error
}

func (r *repo) SetExpenseRefundStatus(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, status *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE expenses SET refund_status = ? WHERE payment_id = ?`,
		status, paymentID,
	).Error
}

func (r *repo) DeleteExpenseByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM expenses WHERE payment_id = ?`, paymentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, recordType domain.RecordType, id snowflake.ID) (bool, error) {
	switch recordType {
	case domain.RecordTypeInvoice:
		return r.invoices.Delete(ctx, db, id)
	case domain.RecordTypePayment:
		return r.payments.Delete(ctx, db, id)
	case domain.RecordTypeBudget:
		return r.budgets.Delete(ctx, db, id)
	case domain.RecordTypeRefund:
		return r.refunds.Delete(ctx, db, id)
	}
	return false, fmt.Errorf("%w: %s", domain.ErrInvalidRecordType, recordType)
}
