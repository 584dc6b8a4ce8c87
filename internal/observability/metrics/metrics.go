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

// Metrics exposes the money-movement instruments.
type Metrics struct {
	ledgerEntries   metric.Int64Counter
	transfers       metric.Int64Counter
	checkouts       metric.Int64Counter
	renewals        metric.Int64Counter
	rateLimitDenied metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
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

// New creates the domain counters on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pxwallet"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("pxwallet_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	transfers, err := meter.Int64Counter("pxwallet_transfers_total")
	if err != nil {
		return nil, err
	}
	checkouts, err := meter.Int64Counter("pxwallet_checkouts_total")
	if err != nil {
		return nil, err
	}
	renewals, err := meter.Int64Counter("pxwallet_renewals_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("pxwallet_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:   ledgerEntries,
		transfers:       transfers,
		checkouts:       checkouts,
		renewals:        renewals,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// NewNoop returns instruments backed by the noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordLedgerEntry(ctx context.Context, kind, referenceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("kind", kind),
		attribute.String("reference_type", referenceType),
	)...))
}

func (m *Metrics) RecordTransfer(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.transfers.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

// RecordCheckout counts checkout attempts by plan code and outcome.
func (m *Metrics) RecordCheckout(ctx context.Context, planCode, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("plan_code", planCode),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordRenewal(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.renewals.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("endpoint", endpoint))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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

// User ids, wallet ids and amounts never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":           {},
	"reference_type": {},
	"outcome":        {},
	"plan_code":      {},
	"endpoint":       {},
	"status_code":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
