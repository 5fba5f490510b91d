package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypeBudget  TransactionType = "budget"
	TransactionTypeExpense TransactionType = "expense"
	TransactionTypeInvoice TransactionType = "invoice"
	TransactionTypeSalary  TransactionType = "salary"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePayment, TransactionTypeRefund, TransactionTypeBudget,
		TransactionTypeExpense, TransactionTypeInvoice, TransactionTypeSalary:
		return true
	}
	return false
}

// Transaction is an append-only ledger row.
type Transaction struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	TransactionType TransactionType `gorm:"type:text;not null" json:"transactionType"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"totalAmount"`
	Details         string          `gorm:"type:text;not null" json:"details"`
	Date            time.Time       `gorm:"not null" json:"date"`
	InvoiceID       *snowflake.ID   `json:"invoiceId,omitempty"`
	UserID          *snowflake.ID   `json:"userId,omitempty"`
	SourceID        *snowflake.ID   `json:"sourceId,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"createdAt"`
}

func (Transaction) TableName() string { return "transactions" }

// Owner is the user a ledger row belongs to.
type Owner struct {
	ID       snowflake.ID `json:"id"`
	FullName string       `json:"fullName"`
	Email    string       `json:"email"`
}

// Entry is a Transaction populated with its owning user.
type Entry struct {
	Transaction
	User *Owner `json:"user,omitempty"`
}
