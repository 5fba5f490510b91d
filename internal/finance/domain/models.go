package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected,
		PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundStatusPending, RefundStatusApproved, RefundStatusRejected:
		return true
	}
	return false
}

type BudgetStatus string

const (
	BudgetStatusPending  BudgetStatus = "pending"
	BudgetStatusApproved BudgetStatus = "approved"
	BudgetStatusDeclined BudgetStatus = "declined"
)

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetStatusPending, BudgetStatusApproved, BudgetStatusDeclined:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusUnpaid InvoiceStatus = "unpaid"
)

func (s InvoiceStatus) Valid() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusUnpaid
}

type PaymentFor string

const (
	PaymentForMerchandise PaymentFor = "merchandise"
	PaymentForPackage     PaymentFor = "package"
	PaymentForTicket      PaymentFor = "ticket"
	PaymentForOther       PaymentFor = "other"
)

func (p PaymentFor) Valid() bool {
	switch p {
	case PaymentForMerchandise, PaymentForPackage, PaymentForTicket, PaymentForOther:
		return true
	}
	return false
}

// ExpenseCategory is the label of the Expense derived from an approved payment.
func (p PaymentFor) ExpenseCategory() string {
	switch p {
	case PaymentForMerchandise:
		return "Merchandise Payment"
	case PaymentForPackage:
		return "Package Payment"
	case PaymentForTicket:
		return "Ticket Payment"
	default:
		return "Other Payment"
	}
}

func (p PaymentFor) ExpenseIcon() string {
	switch p {
	case PaymentForMerchandise:
		return "shopping-bag"
	case PaymentForPackage:
		return "package"
	case PaymentForTicket:
		return "ticket"
	default:
		return "credit-card"
	}
}

// Owner is the user a financial record belongs to.
type Owner struct {
	ID       snowflake.ID `json:"id"`
	FullName string       `json:"fullName"`
	Email    string       `json:"email"`
}

type Invoice struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	Category      string          `json:"category"`
	PaymentStatus InvoiceStatus   `json:"paymentStatus"`
	OwnerID       snowflake.ID    `json:"ownerId"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (Invoice) TableName() string { return "invoices" }

type Payment struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceID          *snowflake.ID     `json:"invoiceId,omitempty"`
	OwnerID            snowflake.ID      `json:"ownerId"`
	Owner              *Owner            `gorm:"-" json:"owner,omitempty"`
	Amount             decimal.Decimal   `gorm:"type:numeric(14,2)" json:"amount"`
	PaymentMethod      string            `json:"paymentMethod"`
	Status             PaymentStatus     `json:"status"`
	PaymentFor         PaymentFor        `json:"paymentFor"`
	AttachmentURL      *string           `json:"attachmentUrl,omitempty"`
	AttachmentProvider *string           `json:"attachmentProvider,omitempty"`
	RefundStatus       *string           `json:"refundStatus,omitempty"`
	RefundID           *snowflake.ID     `json:"refundId,omitempty"`
	Details            datatypes.JSONMap `gorm:"type:jsonb" json:"details"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }

type Budget struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	EventID            snowflake.ID    `json:"eventId"`
	OwnerID            snowflake.ID    `json:"ownerId"`
	AllocatedBudget    decimal.Decimal `gorm:"type:numeric(14,2)" json:"allocatedBudget"`
	RemainingBudget    decimal.Decimal `gorm:"type:numeric(14,2)" json:"remainingBudget"`
	CurrentSpend       decimal.Decimal `gorm:"type:numeric(14,2)" json:"currentSpend"`
	Status             BudgetStatus    `json:"status"`
	Reason             string          `json:"reason"`
	AttachmentURL      *string         `json:"attachmentUrl,omitempty"`
	AttachmentProvider *string         `json:"attachmentProvider,omitempty"`
	LastUpdated        time.Time       `json:"lastUpdated"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func (Budget) TableName() string { return "budgets" }

type Refund struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	PaymentID          *snowflake.ID   `json:"paymentId,omitempty"`
	OwnerID            snowflake.ID    `json:"ownerId"`
	RefundAmount       decimal.Decimal `gorm:"type:numeric(14,2)" json:"refundAmount"`
	Reason             string          `json:"reason"`
	InvoiceNumber      string          `json:"invoiceNumber"`
	Status             RefundStatus    `json:"status"`
	AttachmentURL      *string         `json:"attachmentUrl,omitempty"`
	AttachmentProvider *string         `json:"attachmentProvider,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (Refund) TableName() string { return "refunds" }

// Expense exists only while its payment is approved.
type Expense struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	PaymentID    snowflake.ID    `json:"paymentId"`
	OwnerID      snowflake.ID    `json:"ownerId"`
	Category     string          `json:"category"`
	Icon         string          `json:"icon"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	Description  string          `json:"description"`
	RefundStatus *string         `json:"refundStatus,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (Expense) TableName() string { return "expenses" }

// Record is any financial record addressable through the generic update and delete paths.
type Record interface {
	Type() RecordType
	attachment() (url, provider *string)
}

func (*Invoice) Type() RecordType { return RecordTypeInvoice }
func (*Payment) Type() RecordType { return RecordTypePayment }
func (*Budget) Type() RecordType  { return RecordTypeBudget }
func (*Refund) Type() RecordType  { return RecordTypeRefund }

func (*Invoice) attachment() (*string, *string)   { return nil, nil }
func (p *Payment) attachment() (*string, *string) { return p.AttachmentURL, p.AttachmentProvider }
func (b *Budget) attachment() (*string, *string)  { return b.AttachmentURL, b.AttachmentProvider }
func (r *Refund) attachment() (*string, *string)  { return r.AttachmentURL, r.AttachmentProvider }

// AttachmentOf reports the stored attachment of r, if any.
func AttachmentOf(r Record) (url, provider string, ok bool) {
	u, p := r.attachment()
	if u == nil || *u == "" {
		return "", "", false
	}
	if p != nil {
		provider = *p
	}
	return *u, provider, true
}
