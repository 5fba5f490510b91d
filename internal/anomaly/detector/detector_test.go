package detector

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/encore/internal/anomaly/domain"
	"github.com/smallbiznis/encore/internal/config"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func testConfig() config.AnomalyConfig {
	cfg := config.DefaultAnomalyConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func entry(id int64, user int64, amount int64, typ ledgerdomain.TransactionType, at time.Time) ledgerdomain.Entry {
	e := ledgerdomain.Entry{Transaction: ledgerdomain.Transaction{
		ID:              snowflake.ID(id),
		TransactionType: typ,
		TotalAmount:     decimal.NewFromInt(amount),
		Date:            at,
	}}
	if user != 0 {
		uid := snowflake.ID(user)
		e.UserID = &uid
		e.User = &ledgerdomain.Owner{ID: uid}
	}
	return e
}

func find(report domain.Report, id int64) *domain.Record {
	for i := range report.Anomalies {
		if report.Anomalies[i].ID == snowflake.ID(id) {
			return &report.Anomalies[i]
		}
	}
	return nil
}

func TestEmptyLedger(t *testing.T) {
	report := New(testConfig(), base).Detect(nil)

	assert.NotNil(t, report.Anomalies)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, domain.Stats{}, report.Stats)
}

func TestAmountOutlierIsHighAndOthersAreNotFlagged(t *testing.T) {
	var entries []ledgerdomain.Entry
	for i := int64(1); i <= 9; i++ {
		entries = append(entries, entry(i, 7, 100, ledgerdomain.TransactionTypePayment, base.Add(time.Duration(i)*time.Minute)))
	}
	entries = append(entries, entry(10, 7, 10000, ledgerdomain.TransactionTypePayment, base.Add(10*time.Minute)))

	report := New(testConfig(), base.Add(time.Hour)).Detect(entries)

	require.Len(t, report.Anomalies, 1)
	outlier := report.Anomalies[0]
	assert.Equal(t, snowflake.ID(10), outlier.ID)
	assert.Contains(t, outlier.AnomalyTypes, domain.TypeAmount)
	assert.Equal(t, domain.SeverityHigh, outlier.Severity)
	assert.Equal(t, 10, report.Stats.TotalTransactions)
	assert.Equal(t, 1, report.Stats.AnomalyCount)
	assert.Equal(t, 10.0, report.Stats.AnomalyPercentage)
}

func TestAmountSeverityFollowsThresholds(t *testing.T) {
	// z of the outlier is exactly 3.0 with distinct users so only the amount heuristic applies
	var entries []ledgerdomain.Entry
	for i := int64(1); i <= 9; i++ {
		entries = append(entries, entry(i, i, 100, ledgerdomain.TransactionTypePayment, base))
	}
	entries = append(entries, entry(10, 0, 10000, ledgerdomain.TransactionTypePayment, base))

	report := New(testConfig(), base).Detect(entries)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, []domain.Type{domain.TypeAmount}, report.Anomalies[0].AnomalyTypes)
	assert.Equal(t, domain.SeverityMedium, report.Anomalies[0].Severity)

	cfg := testConfig()
	cfg.ZScoreHighThreshold = 2.9
	report = New(cfg, base).Detect(entries)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, domain.SeverityHigh, report.Anomalies[0].Severity)
}

func TestBudgetAndSalarySkipAmountHeuristicOnly(t *testing.T) {
	var entries []ledgerdomain.Entry
	for i := int64(1); i <= 9; i++ {
		entries = append(entries, entry(i, i, 100, ledgerdomain.TransactionTypePayment, base))
	}
	entries = append(entries, entry(10, 0, 10000, ledgerdomain.TransactionTypeBudget, base))
	entries = append(entries, entry(11, 0, 10000, ledgerdomain.TransactionTypeSalary, base.Add(-8*time.Hour)))

	report := New(testConfig(), base).Detect(entries)

	assert.Nil(t, find(report, 10))
	salary := find(report, 11)
	require.NotNil(t, salary)
	assert.Equal(t, []domain.Type{domain.TypeTime}, salary.AnomalyTypes)
	assert.Equal(t, domain.SeverityLow, salary.Severity)
}

func TestFrequencyNeedsVolumeAndRecency(t *testing.T) {
	now := base.Add(48 * time.Hour)
	var entries []ledgerdomain.Entry
	// five old and six recent transactions, all within business hours
	for i := int64(1); i <= 5; i++ {
		entries = append(entries, entry(i, 7, 50, ledgerdomain.TransactionTypePayment, base.Add(time.Duration(i)*time.Minute)))
	}
	for i := int64(6); i <= 11; i++ {
		entries = append(entries, entry(i, 7, 50, ledgerdomain.TransactionTypePayment, now.Add(-time.Duration(i)*time.Minute)))
	}

	report := New(testConfig(), now).Detect(entries)
	require.Len(t, report.Anomalies, 6)
	for _, a := range report.Anomalies {
		assert.Equal(t, []domain.Type{domain.TypeFrequency}, a.AnomalyTypes)
		assert.Equal(t, domain.SeverityHigh, a.Severity)
		assert.True(t, a.Date.After(base.Add(24*time.Hour)))
	}

	// ten transactions is not enough volume
	report = New(testConfig(), now).Detect(entries[1:])
	assert.Empty(t, report.Anomalies)
}

func TestTimeOfDayBoundaries(t *testing.T) {
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	entries := []ledgerdomain.Entry{
		entry(1, 1, 100, ledgerdomain.TransactionTypePayment, day.Add(8*time.Hour+59*time.Minute)),
		entry(2, 2, 100, ledgerdomain.TransactionTypePayment, day.Add(9*time.Hour)),
		entry(3, 3, 100, ledgerdomain.TransactionTypePayment, day.Add(17*time.Hour+30*time.Minute)),
		entry(4, 4, 100, ledgerdomain.TransactionTypePayment, day.Add(18*time.Hour)),
	}

	report := New(testConfig(), day.Add(20*time.Hour)).Detect(entries)

	require.Len(t, report.Anomalies, 2)
	assert.NotNil(t, find(report, 1))
	assert.NotNil(t, find(report, 4))
	assert.Equal(t, 50.0, report.Stats.AnomalyPercentage)
}

func TestTimeOfDayUsesConfiguredTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Asia/Jakarta"
	// 03:00 UTC is 10:00 in Jakarta
	entries := []ledgerdomain.Entry{entry(1, 1, 100, ledgerdomain.TransactionTypePayment, time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC))}

	assert.Empty(t, New(cfg, base).Detect(entries).Anomalies)
	assert.Len(t, New(testConfig(), base).Detect(entries).Anomalies, 1)
}

func TestUserDeviation(t *testing.T) {
	entries := []ledgerdomain.Entry{
		entry(1, 7, 10, ledgerdomain.TransactionTypePayment, base),
		entry(2, 7, 10, ledgerdomain.TransactionTypePayment, base),
		entry(3, 7, 10, ledgerdomain.TransactionTypePayment, base),
		entry(4, 7, 10, ledgerdomain.TransactionTypePayment, base),
		entry(5, 7, 200, ledgerdomain.TransactionTypeRefund, base),
		entry(6, 8, 300, ledgerdomain.TransactionTypePayment, base),
	}

	report := New(testConfig(), base).Detect(entries)

	flagged := find(report, 5)
	require.NotNil(t, flagged)
	assert.Equal(t, []domain.Type{domain.TypeUser}, flagged.AnomalyTypes)
	assert.Equal(t, domain.SeverityHigh, flagged.Severity)
	assert.Nil(t, find(report, 6))
}

func TestSortedBySeverityThenDate(t *testing.T) {
	entries := []ledgerdomain.Entry{
		entry(1, 1, 100, ledgerdomain.TransactionTypePayment, base.Add(-5*time.Hour)),
		entry(2, 2, 100, ledgerdomain.TransactionTypePayment, base.Add(-4*time.Hour)),
		entry(3, 3, 10, ledgerdomain.TransactionTypePayment, base),
		entry(4, 3, 10, ledgerdomain.TransactionTypePayment, base),
		entry(5, 3, 10, ledgerdomain.TransactionTypePayment, base),
		entry(6, 3, 10, ledgerdomain.TransactionTypePayment, base),
		entry(7, 3, 200, ledgerdomain.TransactionTypePayment, base.Add(-time.Hour)),
	}

	report := New(testConfig(), base).Detect(entries)

	var ids []snowflake.ID
	for _, a := range report.Anomalies {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []snowflake.ID{7, 2, 1}, ids)
	assert.Equal(t, domain.SeverityHigh, report.Anomalies[0].Severity)
}

func TestPercentageRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 0.0, percentage(0, 0))
}

func TestSeverityMax(t *testing.T) {
	assert.Equal(t, domain.SeverityHigh, domain.SeverityLow.Max(domain.SeverityHigh))
	assert.Equal(t, domain.SeverityMedium, domain.SeverityMedium.Max(domain.SeverityLow))
	assert.Equal(t, domain.SeverityLow, domain.Severity("").Max(domain.SeverityLow))
}
