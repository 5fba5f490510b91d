// Package testutil opens throwaway SQLite databases carrying the finance schema.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE users (
		id BIGINT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE events (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE invoices (
		id BIGINT PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		amount NUMERIC NOT NULL,
		category TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		owner_id BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT,
		owner_id BIGINT NOT NULL,
		amount NUMERIC NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_for TEXT NOT NULL,
		attachment_url TEXT,
		attachment_provider TEXT,
		refund_status TEXT,
		refund_id BIGINT,
		details TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE budgets (
		id BIGINT PRIMARY KEY,
		event_id BIGINT NOT NULL,
		owner_id BIGINT NOT NULL,
		allocated_budget NUMERIC NOT NULL,
		remaining_budget NUMERIC NOT NULL,
		current_spend NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT NOT NULL DEFAULT '',
		attachment_url TEXT,
		attachment_provider TEXT,
		last_updated DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE refunds (
		id BIGINT PRIMARY KEY,
		payment_id BIGINT,
		owner_id BIGINT NOT NULL,
		refund_amount NUMERIC NOT NULL,
		reason TEXT NOT NULL,
		invoice_number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attachment_url TEXT,
		attachment_provider TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE transactions (
		id BIGINT PRIMARY KEY,
		transaction_type TEXT NOT NULL,
		total_amount NUMERIC NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		date DATETIME NOT NULL,
		invoice_id BIGINT,
		user_id BIGINT,
		source_id BIGINT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE expenses (
		id BIGINT PRIMARY KEY,
		payment_id BIGINT NOT NULL UNIQUE,
		owner_id BIGINT NOT NULL,
		category TEXT NOT NULL,
		icon TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		refund_status TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE notifications (
		id BIGINT PRIMARY KEY,
		user_id BIGINT,
		role TEXT,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		invoice_id BIGINT,
		payment_id BIGINT,
		refund_id BIGINT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE notification_outbox (
		id BIGINT PRIMARY KEY,
		notification_id BIGINT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	)`,
	`CREATE TABLE audit_logs (
		id BIGINT PRIMARY KEY,
		actor_id BIGINT,
		actor_role TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB returns an isolated in-memory database with the finance schema applied.
// A single connection serializes access so background workers cannot hit table locks.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// Count runs a COUNT query and fails the test on error.
func Count(t testing.TB, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

// SeedUser inserts a users row.
func SeedUser(t testing.TB, db *gorm.DB, id int64, fullName, email, role string) {
	t.Helper()
	if err := db.Exec(`INSERT INTO users (id, full_name, email, role) VALUES (?, ?, ?, ?)`, id, fullName, email, role).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

// SeedEvent inserts an events row with the given status.
func SeedEvent(t testing.TB, db *gorm.DB, id int64, title, status string) {
	t.Helper()
	if err := db.Exec(`INSERT INTO events (id, title, status) VALUES (?, ?, ?)`, id, title, status).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
}
