// Package detector flags ledger entries with four independent heuristics: amount z-score,
// per-user frequency, time of day and deviation from the user's own mean.
package detector

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/encore/internal/anomaly/domain"
	"github.com/smallbiznis/encore/internal/config"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
)

type Detector struct {
	cfg config.AnomalyConfig
	loc *time.Location
	now time.Time
}

// New builds a detector evaluating recency against now. An unknown timezone falls back to UTC.
func New(cfg config.AnomalyConfig, now time.Time) *Detector {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		loc = time.UTC
	}
	return &Detector{cfg: cfg, loc: loc, now: now}
}

type match struct {
	types    []domain.Type
	severity domain.Severity
}

func (m *match) add(t domain.Type, s domain.Severity) {
	m.types = append(m.types, t)
	m.severity = m.severity.Max(s)
}

type userStats struct {
	count  int
	recent int
	sum    float64
}

func (d *Detector) Detect(entries []ledgerdomain.Entry) domain.Report {
	report := domain.Report{Anomalies: []domain.Record{}}
	if len(entries) == 0 {
		return report
	}

	amounts := make([]float64, len(entries))
	for i, e := range entries {
		amounts[i] = e.TotalAmount.InexactFloat64()
	}
	mean, stddev := meanStdDev(amounts)

	window := time.Duration(d.cfg.FrequencyWindowHrs) * time.Hour
	users := map[int64]*userStats{}
	for i, e := range entries {
		if e.UserID == nil {
			continue
		}
		st := users[e.UserID.Int64()]
		if st == nil {
			st = &userStats{}
			users[e.UserID.Int64()] = st
		}
		st.count++
		st.sum += amounts[i]
		if d.recent(e.Date, window) {
			st.recent++
		}
	}

	for i, e := range entries {
		var m match

		if stddev > 0 && !skipsAmount(e.TransactionType) {
			z := math.Abs(amounts[i]-mean) / stddev
			if z > d.cfg.ZScoreThreshold {
				if z > d.cfg.ZScoreHighThreshold {
					m.add(domain.TypeAmount, domain.SeverityHigh)
				} else {
					m.add(domain.TypeAmount, domain.SeverityMedium)
				}
			}
		}

		if e.UserID != nil {
			st := users[e.UserID.Int64()]
			if st.count > d.cfg.FrequencyMinTotal && st.recent > d.cfg.FrequencyMinRecent && d.recent(e.Date, window) {
				m.add(domain.TypeFrequency, domain.SeverityHigh)
			}
		}

		hour := e.Date.In(d.loc).Hour()
		if hour < d.cfg.BusinessHourStart || hour > d.cfg.BusinessHourEnd {
			m.add(domain.TypeTime, domain.SeverityLow)
		}

		if e.UserID != nil {
			st := users[e.UserID.Int64()]
			userMean := st.sum / float64(st.count)
			if userMean > 0 && amounts[i] > d.cfg.UserMeanMultiplier*userMean {
				m.add(domain.TypeUser, domain.SeverityHigh)
			}
		}

		if len(m.types) > 0 {
			report.Anomalies = append(report.Anomalies, domain.Record{
				Entry:        e,
				AnomalyTypes: m.types,
				Severity:     m.severity,
			})
		}
	}

	sort.SliceStable(report.Anomalies, func(i, j int) bool {
		a, b := report.Anomalies[i], report.Anomalies[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})

	report.Stats = domain.Stats{
		TotalTransactions: len(entries),
		AnomalyCount:      len(report.Anomalies),
		AnomalyPercentage: percentage(len(report.Anomalies), len(entries)),
	}
	return report
}

func (d *Detector) recent(at time.Time, window time.Duration) bool {
	return !at.After(d.now) && d.now.Sub(at) <= window
}

// skipsAmount excludes planned allocations from the amount heuristic only.
func skipsAmount(t ledgerdomain.TransactionType) bool {
	return t == ledgerdomain.TransactionTypeBudget || t == ledgerdomain.TransactionTypeSalary
}

// meanStdDev returns the population mean and standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2).
		InexactFloat64()
}
