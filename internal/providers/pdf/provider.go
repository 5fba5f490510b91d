package pdf

import (
	"context"
	"errors"
)

var ErrEmptyReceipt = errors.New("empty_receipt")

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}
