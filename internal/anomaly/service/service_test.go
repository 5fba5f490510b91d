package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	anomalydomain "github.com/smallbiznis/encore/internal/anomaly/domain"
	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/encore/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/encore/internal/ledger/service"
	"github.com/smallbiznis/encore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDetectOverLedger(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedUser(t, db, 7, "Jane Doe", "jane@example.com", "member")
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  ledgerrepository.Provide(),
	})
	thresholds := config.DefaultAnomalyConfig()
	thresholds.Timezone = "UTC"
	svc := NewService(Params{
		Log:        zap.NewNop(),
		Clock:      clk,
		Ledger:     ledger,
		Thresholds: config.StaticAnomalyConfig(thresholds),
	})

	report, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, 0, report.Stats.AnomalyCount)

	user := snowflake.ID(7)
	for i := 0; i < 9; i++ {
		_, err := ledger.Record(context.Background(), nil, ledgerdomain.RecordInput{
			Type:   ledgerdomain.TransactionTypePayment,
			Amount: decimal.NewFromInt(100),
			UserID: &user,
			Date:   time.Date(2025, 5, 1, 10, i, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	_, err = ledger.Record(context.Background(), nil, ledgerdomain.RecordInput{
		Type:   ledgerdomain.TransactionTypePayment,
		Amount: decimal.NewFromInt(10000),
		UserID: &user,
		Date:   time.Date(2025, 5, 1, 11, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	report, err = svc.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)
	flagged := report.Anomalies[0]
	assert.Contains(t, flagged.AnomalyTypes, anomalydomain.TypeAmount)
	assert.Equal(t, anomalydomain.SeverityHigh, flagged.Severity)
	require.NotNil(t, flagged.User)
	assert.Equal(t, "Jane Doe", flagged.User.FullName)
	assert.Equal(t, 10, report.Stats.TotalTransactions)
}
