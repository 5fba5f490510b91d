package domain

import (
	"context"

	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
)

type Type string

const (
	TypeAmount    Type = "amount"
	TypeFrequency Type = "frequency"
	TypeTime      Type = "time"
	TypeUser      Type = "user"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities, high first when sorted descending.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Max returns the more severe of s and other.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// Record is a ledger entry matched by at least one heuristic. It is computed, never stored.
type Record struct {
	ledgerdomain.Entry
	AnomalyTypes []Type   `json:"anomalyTypes"`
	Severity     Severity `json:"severity"`
}

type Stats struct {
	TotalTransactions int     `json:"totalTransactions"`
	AnomalyCount      int     `json:"anomalyCount"`
	AnomalyPercentage float64 `json:"anomalyPercentage"`
}

type Report struct {
	Anomalies []Record `json:"anomalies"`
	Stats     Stats    `json:"stats"`
}

type Service interface {
	Detect(ctx context.Context) (Report, error)
}
