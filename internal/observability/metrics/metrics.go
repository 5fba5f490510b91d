package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes finance instruments.
type Metrics struct {
	paymentsCreated        metric.Int64Counter
	recordTransitions      metric.Int64Counter
	expenses               metric.Int64Counter
	anomaliesFlagged       metric.Int64Counter
	notificationsDelivered metric.Int64Counter
	notificationsDropped   metric.Int64Counter
	attachmentFallbacks    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the finance instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "encore"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.paymentsCreated, err = meter.Int64Counter("encore_payments_created_total"); err != nil {
		return nil, err
	}
	if m.recordTransitions, err = meter.Int64Counter("encore_record_transitions_total"); err != nil {
		return nil, err
	}
	if m.expenses, err = meter.Int64Counter("encore_expenses_total"); err != nil {
		return nil, err
	}
	if m.anomaliesFlagged, err = meter.Int64Counter("encore_anomalies_flagged_total"); err != nil {
		return nil, err
	}
	if m.notificationsDelivered, err = meter.Int64Counter("encore_notifications_delivered_total"); err != nil {
		return nil, err
	}
	if m.notificationsDropped, err = meter.Int64Counter("encore_notifications_dropped_total"); err != nil {
		return nil, err
	}
	if m.attachmentFallbacks, err = meter.Int64Counter("encore_attachment_fallbacks_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPaymentCreated counts orchestrated payments by purpose.
func (m *Metrics) RecordPaymentCreated(ctx context.Context, paymentFor string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("payment_for", strings.TrimSpace(paymentFor)))
	m.paymentsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransition counts status transitions that produced side effects.
func (m *Metrics) RecordTransition(ctx context.Context, recordType, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("record_type", strings.TrimSpace(recordType)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.recordTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordExpense counts derived expense writes by operation (create or delete).
func (m *Metrics) RecordExpense(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.expenses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAnomalies counts flagged transactions per severity.
func (m *Metrics) RecordAnomalies(ctx context.Context, severity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("severity", strings.TrimSpace(severity)))
	m.anomaliesFlagged.Add(ctx, int64(n), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotificationDelivered(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.notificationsDelivered.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotificationDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.notificationsDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAttachmentFallback(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.attachmentFallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"payment_for": {},
	"record_type": {},
	"status":      {},
	"operation":   {},
	"severity":    {},
	"kind":        {},
	"reason":      {},
	"provider":    {},
	"route":       {},
	"method":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
