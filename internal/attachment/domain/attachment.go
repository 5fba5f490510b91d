package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/encore/internal/config"
)

const (
	FolderBankSlips      = "bank-slips"
	FolderBudgetInfo     = "budget-info"
	FolderRefundReceipts = "refund-receipts"
)

var (
	ErrEmptyFile          = errors.New("empty_file")
	ErrNoProviders        = errors.New("no_attachment_providers")
	ErrProviderNotFound   = errors.New("attachment_provider_not_found")
	ErrProviderDisabled   = errors.New("attachment_provider_disabled")
	ErrStorageUnavailable = errors.New("attachment_storage_unavailable")
)

// File is an uploaded attachment held in memory so every provider can re-read it.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// Stored locates a persisted attachment. Provider names the backend that holds it.
type Stored struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// Provider is one storage backend.
type Provider interface {
	Name() string
	Store(ctx context.Context, file File, folder string) (Stored, error)
	Delete(ctx context.Context, url string) error
}

// Store is what finance workflows depend on.
type Store interface {
	Store(ctx context.Context, file File, folder string) (Stored, error)
	Delete(ctx context.Context, stored Stored) error
}

type Factory interface {
	Provider() string
	New(cfg config.AttachmentConfig) (Provider, error)
}
