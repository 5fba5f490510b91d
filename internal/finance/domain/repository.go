package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	InsertBudget(ctx context.Context, db *gorm.DB, budget *Budget) error
	InsertRefund(ctx context.Context, db *gorm.DB, refund *Refund) error
	InsertExpense(ctx context.Context, db *gorm.DB, expense *Expense) error

	FindInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindPayment locks the row for the rest of the transaction where the dialect allows.
	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	// FindPaymentByInvoiceNumber returns nil, nil when no payment backs the invoice.
	FindPaymentByInvoiceNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*Payment, error)
	FindBudget(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Budget, error)
	FindRefund(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Refund, error)
	FindExpenseByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*Expense, error)
	FindOwner(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Owner, error)

	UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	UpdateBudget(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	UpdateInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	UpdateRefund(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	SetPaymentRefund(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, refundID *snowflake.ID, status *string, at time.Time) error
	SetExpenseRefundStatus(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, status *string) error

	DeleteExpenseByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, recordType RecordType, id snowflake.ID) (bool, error)
}
