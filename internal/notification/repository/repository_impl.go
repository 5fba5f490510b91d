package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/notification/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, user_id, role, message, type, is_read, invoice_id, payment_id, refund_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.UserID,
		n.Role,
		n.Message,
		n.Type,
		n.IsRead,
		n.InvoiceID,
		n.PaymentID,
		n.RefundID,
		n.CreatedAt,
	).Error
}

func (r *repo) InsertOutbox(ctx context.Context, db *gorm.DB, msg *domain.OutboxMessage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notification_outbox (id, notification_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		msg.ID,
		msg.NotificationID,
		msg.Payload,
		msg.CreatedAt,
	).Error
}

func (r *repo) ListForRecipient(ctx context.Context, db *gorm.DB, userID snowflake.ID, roles []string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	stmt := db.WithContext(ctx).Model(&domain.Notification{})
	if len(roles) > 0 {
		stmt = stmt.Where("(user_id = ? OR role IN ?)", userID, roles)
	} else {
		stmt = stmt.Where("user_id = ?", userID)
	}
	if unreadOnly {
		stmt = stmt.Where("is_read = ?", false)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var rows []domain.Notification
	if err := stmt.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id, userID snowflake.ID, roles []string) (bool, error) {
	stmt := db.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", id)
	if len(roles) > 0 {
		stmt = stmt.Where("(user_id = ? OR role IN ?)", userID, roles)
	} else {
		stmt = stmt.Where("user_id = ?", userID)
	}
	res := stmt.Update("is_read", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LockPendingOutbox claims unprocessed rows. Concurrent relays skip rows another relay holds.
func (r *repo) LockPendingOutbox(ctx context.Context, db *gorm.DB, limit int) ([]domain.OutboxMessage, error) {
	var rows []domain.OutboxMessage
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("processed_at IS NULL").
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkOutboxProcessed(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE notification_outbox SET processed_at = ? WHERE id IN ?`,
		at, ids,
	).Error
}
