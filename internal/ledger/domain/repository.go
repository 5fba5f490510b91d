package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Type   TransactionType
	UserID *snowflake.ID
	After  *pagination.Cursor
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tx *Transaction) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, error)
	ListEntries(ctx context.Context, db *gorm.DB) ([]Entry, error)
}
