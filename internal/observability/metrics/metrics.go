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

// Metrics exposes application-level instruments.
type Metrics struct {
	uploads          metric.Int64Counter
	uploadRejected   metric.Int64Counter
	reviews          metric.Int64Counter
	settlements      metric.Int64Counter
	allocations      metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	blobCleanup      metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "speechapp"
	}
	meter := provider.Meter(name)

	uploads, err := meter.Int64Counter("speechapp_recording_uploads_total")
	if err != nil {
		return nil, err
	}
	uploadRejected, err := meter.Int64Counter("speechapp_recording_upload_rejected_total")
	if err != nil {
		return nil, err
	}
	reviews, err := meter.Int64Counter("speechapp_recording_reviews_total")
	if err != nil {
		return nil, err
	}
	settlements, err := meter.Int64Counter("speechapp_payment_settlements_total")
	if err != nil {
		return nil, err
	}
	allocations, err := meter.Int64Counter("speechapp_prompt_allocations_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("speechapp_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("speechapp_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	blobCleanup, err := meter.Int64Counter("speechapp_blob_cleanup_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		uploads:          uploads,
		uploadRejected:   uploadRejected,
		reviews:          reviews,
		settlements:      settlements,
		allocations:      allocations,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
		blobCleanup:      blobCleanup,
	}, nil
}

// RecordUpload increments accepted recording uploads.
func (m *Metrics) RecordUpload(ctx context.Context, variant string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("variant", strings.TrimSpace(variant)))
	m.uploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUploadRejected increments uploads refused by a precondition.
func (m *Metrics) RecordUploadRejected(ctx context.Context, variant, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("variant", strings.TrimSpace(variant)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.uploadRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReview counts recordings touched by an admin review action.
func (m *Metrics) RecordReview(ctx context.Context, action string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("action", strings.TrimSpace(action)))
	m.reviews.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordSettlement counts settlement attempts by outcome.
func (m *Metrics) RecordSettlement(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.settlements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAllocation counts next-prompt requests by outcome.
func (m *Metrics) RecordAllocation(ctx context.Context, variant, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("variant", strings.TrimSpace(variant)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.allocations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBlobCleanupFailure counts blob deletes that failed after the database state moved on.
func (m *Metrics) RecordBlobCleanupFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.blobCleanup.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"endpoint":    {},
	"status_code": {},
	"variant":     {},
	"action":      {},
	"outcome":     {},
	"reason":      {},
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
