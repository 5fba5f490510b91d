package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/encore/internal/clock"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	"github.com/smallbiznis/encore/internal/ledger/repository"
	"github.com/smallbiznis/encore/internal/testutil"
	"github.com/smallbiznis/encore/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedger(t *testing.T) (ledgerdomain.Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.OpenDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repository.Provide()}), clk
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	svc, _ := newLedger(t)

	_, err := svc.Record(context.Background(), nil, ledgerdomain.RecordInput{Type: "bonus", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTransactionType)

	_, err = svc.Record(context.Background(), nil, ledgerdomain.RecordInput{Type: ledgerdomain.TransactionTypePayment, Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestRecordDefaultsDateToNow(t *testing.T) {
	svc, clk := newLedger(t)

	row, err := svc.Record(context.Background(), nil, ledgerdomain.RecordInput{
		Type:    ledgerdomain.TransactionTypeExpense,
		Amount:  decimal.NewFromInt(12),
		Details: "  venue deposit ",
	})
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), row.Date)
	assert.Equal(t, "venue deposit", row.Details)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, clk := newLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		typ := ledgerdomain.TransactionTypePayment
		if i%2 == 1 {
			typ = ledgerdomain.TransactionTypeRefund
		}
		_, err := svc.Record(ctx, nil, ledgerdomain.RecordInput{Type: typ, Amount: decimal.NewFromInt(int64(i + 1))})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, ledgerdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.Transactions[0].TotalAmount.Equal(decimal.NewFromInt(5)))

	second, err := svc.List(ctx, ledgerdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 2)
	assert.True(t, second.Transactions[0].TotalAmount.Equal(decimal.NewFromInt(3)))

	refunds, err := svc.List(ctx, ledgerdomain.ListRequest{Type: ledgerdomain.TransactionTypeRefund})
	require.NoError(t, err)
	assert.Len(t, refunds.Transactions, 2)
	assert.False(t, refunds.HasMore)

	_, err = svc.List(ctx, ledgerdomain.ListRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
