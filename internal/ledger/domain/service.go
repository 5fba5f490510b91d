package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/encore/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrInvalidAmount          = errors.New("invalid_amount")
)

type RecordInput struct {
	Type      TransactionType
	Amount    decimal.Decimal
	Details   string
	InvoiceID *snowflake.ID
	UserID    *snowflake.ID
	SourceID  *snowflake.ID
	Date      time.Time
}

type ListRequest struct {
	pagination.Pagination
	Type   TransactionType
	UserID *snowflake.ID
}

type ListResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	// Record appends a row using the caller's transaction handle.
	Record(ctx context.Context, tx *gorm.DB, in RecordInput) (*Transaction, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Entries(ctx context.Context) ([]Entry, error)
}
