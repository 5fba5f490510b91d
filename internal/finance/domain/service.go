package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
)

type PaymentRequest struct {
	Amount        decimal.Decimal
	PaymentMethod string
	PaymentFor    PaymentFor
	// Fields holds auxiliary values; only the keys of the orchestrator's FieldSet are kept.
	Fields     map[string]string
	Attachment *attachmentdomain.File
}

type PaymentResult struct {
	Invoice     *Invoice                  `json:"invoice"`
	Payment     *Payment                  `json:"payment"`
	Transaction *ledgerdomain.Transaction `json:"transaction"`
}

type BudgetRequest struct {
	AllocatedBudget decimal.Decimal
	// RemainingBudget defaults to AllocatedBudget.
	RemainingBudget *decimal.Decimal
	Status          BudgetStatus
	Reason          string
	EventID         snowflake.ID
	Attachment      *attachmentdomain.File
}

type BudgetResult struct {
	Budget      *Budget                   `json:"budget"`
	Transaction *ledgerdomain.Transaction `json:"transaction"`
}

type RefundRequest struct {
	RefundAmount  decimal.Decimal
	Reason        string
	InvoiceNumber string
	// PaymentID links the refund to a payment and bounds RefundAmount by it.
	PaymentID  *snowflake.ID
	Attachment *attachmentdomain.File
}

type RefundResult struct {
	Refund      *Refund                   `json:"refund"`
	Transaction *ledgerdomain.Transaction `json:"transaction"`
}

type Service interface {
	MakePayment(ctx context.Context, fields FieldSet, req PaymentRequest) (*PaymentResult, error)
	CreateBudget(ctx context.Context, req BudgetRequest) (*BudgetResult, error)
	RequestRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	UpdateRecord(ctx context.Context, id snowflake.ID, update RecordUpdate) (Record, error)
	GetRecord(ctx context.Context, recordType RecordType, id snowflake.ID) (Record, error)
	DeleteRecord(ctx context.Context, recordType RecordType, id snowflake.ID) error
}

// Locker serializes work on one key across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}
