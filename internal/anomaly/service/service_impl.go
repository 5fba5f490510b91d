package service

import (
	"context"

	"github.com/smallbiznis/encore/internal/anomaly/detector"
	anomalydomain "github.com/smallbiznis/encore/internal/anomaly/domain"
	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	"github.com/smallbiznis/encore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/encore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Ledger     ledgerdomain.Service
	Thresholds config.AnomalyThresholds
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	ledger     ledgerdomain.Service
	thresholds config.AnomalyThresholds
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) anomalydomain.Service {
	return &Service{
		log:        p.Log.Named("anomaly.service"),
		clock:      p.Clock,
		ledger:     p.Ledger,
		thresholds: p.Thresholds,
		metrics:    p.Metrics,
	}
}

// Detect loads the whole ledger and runs the heuristics with the thresholds current at call time.
func (s *Service) Detect(ctx context.Context) (anomalydomain.Report, error) {
	entries, err := s.ledger.Entries(ctx)
	if err != nil {
		return anomalydomain.Report{}, err
	}

	report := detector.New(s.thresholds.Get(), s.clock.Now()).Detect(entries)

	bySeverity := map[anomalydomain.Severity]int{}
	for _, a := range report.Anomalies {
		bySeverity[a.Severity]++
	}
	for severity, n := range bySeverity {
		s.metrics.RecordAnomalies(ctx, string(severity), n)
	}
	logger.WithContext(ctx, s.log).Debug("anomaly detection finished",
		zap.Int("transactions", report.Stats.TotalTransactions),
		zap.Int("anomalies", report.Stats.AnomalyCount),
	)
	return report, nil
}
