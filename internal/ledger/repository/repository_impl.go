package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/encore/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (id, transaction_type, total_amount, details, date, invoice_id, user_id, source_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.TransactionType,
		tx.TotalAmount,
		tx.Details,
		tx.Date,
		tx.InvoiceID,
		tx.UserID,
		tx.SourceID,
		tx.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, error) {
	stmt := db.WithContext(ctx).Model(&domain.Transaction{})
	if filter.Type != "" {
		stmt = stmt.Where("transaction_type = ?", filter.Type)
	}
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if filter.After != nil {
		id, err := snowflake.ParseString(filter.After.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(date < ?) OR (date = ? AND id < ?)", filter.After.At, filter.After.At, id)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var rows []domain.Transaction
	if err := stmt.Order("date desc, id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type entryRow struct {
	ID              snowflake.ID
	TransactionType domain.TransactionType
	TotalAmount     decimal.Decimal
	Details         string
	Date            time.Time
	InvoiceID       *snowflake.ID
	UserID          *snowflake.ID
	SourceID        *snowflake.ID
	CreatedAt       time.Time
	UserFullName    *string
	UserEmail       *string
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB) ([]domain.Entry, error) {
	var rows []entryRow
	err := db.WithContext(ctx).Raw(
		`SELECT t.id, t.transaction_type, t.total_amount, t.details, t.date, t.invoice_id, t.user_id, t.source_id, t.created_at,
		        u.full_name AS user_full_name, u.email AS user_email
		 FROM transactions t
		 LEFT JOIN users u ON u.id = t.user_id
		 ORDER BY t.date DESC, t.id DESC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(rows))
	for _, row := range rows {
		entry := domain.Entry{Transaction: domain.Transaction{
			ID:              row.ID,
			TransactionType: row.TransactionType,
			TotalAmount:     row.TotalAmount,
			Details:         row.Details,
			Date:            row.Date,
			InvoiceID:       row.InvoiceID,
			UserID:          row.UserID,
			SourceID:        row.SourceID,
			CreatedAt:       row.CreatedAt,
		}}
		if row.UserID != nil {
			owner := &domain.Owner{ID: *row.UserID}
			if row.UserFullName != nil {
				owner.FullName = *row.UserFullName
			}
			if row.UserEmail != nil {
				owner.Email = *row.UserEmail
			}
			entry.User = owner
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
