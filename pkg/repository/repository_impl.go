package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption narrows a lookup.
type QueryOption func(*gorm.DB) *gorm.DB

// ForUpdate row-locks the lookup for the surrounding transaction. Dialects without row
// locks ignore it.
func ForUpdate() QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
}

// Repository is a by-id store for one table. The handle is passed per call so callers can
// run it inside their own transaction.
type Repository[T any] interface {
	FindByID(ctx context.Context, db *gorm.DB, id any, opts ...QueryOption) (*T, error)
	Updates(ctx context.Context, db *gorm.DB, id any, fields map[string]any) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id any) (bool, error)
}

type store[T any] struct{}

func ProvideStore[T any]() Repository[T] {
	return &store[T]{}
}

// FindByID returns nil, nil when no row matches.
func (r *store[T]) FindByID(ctx context.Context, db *gorm.DB, id any, opts ...QueryOption) (*T, error) {
	stmt := db.WithContext(ctx)
	for _, opt := range opts {
		stmt = opt(stmt)
	}

	var result T
	err := stmt.Where("id = ?", id).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Updates(ctx context.Context, db *gorm.DB, id any, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	res := db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *store[T]) Delete(ctx context.Context, db *gorm.DB, id any) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
