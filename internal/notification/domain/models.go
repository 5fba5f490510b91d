package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

var (
	ErrNotFound        = errors.New("notification_not_found")
	ErrNoRecipient     = errors.New("notification_without_recipient")
	ErrEmptyMessage    = errors.New("empty_notification_message")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Notice is a request to notify one user, or every holder of Role when UserID is nil.
type Notice struct {
	UserID  *snowflake.ID
	Role    string
	Email   string
	Name    string
	Subject string
	Message string
	Type    Type

	InvoiceID *snowflake.ID
	PaymentID *snowflake.ID
	RefundID  *snowflake.ID
}

// Notifier accepts notices without blocking the caller. Delivery failures never reach it.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type Notification struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID    *snowflake.ID `json:"userId,omitempty"`
	Role      *string       `json:"role,omitempty"`
	Message   string        `json:"message"`
	Type      Type          `json:"type"`
	IsRead    bool          `json:"isRead"`
	InvoiceID *snowflake.ID `json:"invoiceId,omitempty"`
	PaymentID *snowflake.ID `json:"paymentId,omitempty"`
	RefundID  *snowflake.ID `json:"refundId,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }

type OutboxMessage struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	NotificationID snowflake.ID
	Payload        string
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

func (OutboxMessage) TableName() string { return "notification_outbox" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	InsertOutbox(ctx context.Context, db *gorm.DB, msg *OutboxMessage) error
	ListForRecipient(ctx context.Context, db *gorm.DB, userID snowflake.ID, roles []string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, id, userID snowflake.ID, roles []string) (bool, error)
	LockPendingOutbox(ctx context.Context, db *gorm.DB, limit int) ([]OutboxMessage, error)
	MarkOutboxProcessed(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
}

type ListRequest struct {
	UnreadOnly bool
	Limit      int
}

type Service interface {
	// List returns notifications addressed to the acting user or to one of their roles.
	List(ctx context.Context, req ListRequest) ([]Notification, error)
	MarkRead(ctx context.Context, id snowflake.ID) error
}

// Publisher ships outbox messages to an external broker.
type Publisher interface {
	Publish(ctx context.Context, msgs []OutboxMessage) error
	Close() error
}
