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

// Metrics exposes bookkeeping instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	invoicesIssued      metric.Int64Counter
	invoiceStornos      metric.Int64Counter
	counterRetries      metric.Int64Counter
	commissionsRecorded metric.Int64Counter
	tablePayments       metric.Int64Counter
	tableSessionsClosed metric.Int64Counter
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "lokma"
	}
	meter := provider.Meter(name)

	var m Metrics
	for instrument, dst := range map[string]*metric.Int64Counter{
		"lokma_invoices_issued_total":         &m.invoicesIssued,
		"lokma_invoice_stornos_total":         &m.invoiceStornos,
		"lokma_invoice_counter_retries_total": &m.counterRetries,
		"lokma_commissions_recorded_total":    &m.commissionsRecorded,
		"lokma_table_payments_total":          &m.tablePayments,
		"lokma_table_sessions_closed_total":   &m.tableSessionsClosed,
	} {
		counter, err := meter.Int64Counter(instrument)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", instrument, err)
		}
		*dst = counter
	}
	return &m, nil
}

// NewNoop returns instruments backed by the noop provider, for tests.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordInvoiceIssued(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.invoicesIssued.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

func (m *Metrics) RecordStorno(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.invoiceStornos.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordCounterRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.counterRetries.Add(ctx, 1)
}

func (m *Metrics) RecordCommission(ctx context.Context, courierType, collectionStatus string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("courier_type", courierType),
		attribute.String("collection_status", collectionStatus),
	)
	m.commissionsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTablePayment(ctx context.Context, mode, method string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("mode", mode),
		attribute.String("payment_method", method),
	)
	m.tablePayments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTableSessionEnded(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.tableSessionsClosed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("status", status))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		if endpoint == "" {
			return otlpmetrichttp.New(ctx)
		}
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint))
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":              {},
	"outcome":           {},
	"courier_type":      {},
	"collection_status": {},
	"mode":              {},
	"payment_method":    {},
	"status":            {},
}

// FilterAttributes strips labels outside the allow-list so business and
// order identifiers never become metric dimensions.
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
