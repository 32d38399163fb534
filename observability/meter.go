package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/queuekit/logger"
)

// InitMeter installs a global meter provider that pushes to the OTLP/HTTP
// endpoint in cfg every cfg.Interval. The caller must shut it down on exit.
func InitMeter(ctx context.Context, cfg Config, id Identity) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := id.resource()
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", id.Service,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names recorded by Metrics.
const (
	MetricHTTPRequests       = "http.server.requests"
	MetricHTTPDuration       = "http.server.request.duration"
	MetricHTTPActiveRequests = "http.server.active_requests"
	MetricErrors             = "queuekit.errors"
	MetricRejected           = "queuekit.rejected"
)

// Metrics holds the instruments of the HTTP surface.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
	errors   metric.Int64Counter
	rejected metric.Int64Counter
}

// NewMetrics creates the HTTP instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error
	if m.requests, err = meter.Int64Counter(MetricHTTPRequests,
		metric.WithDescription("Completed HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricHTTPRequests, err)
	}
	if m.duration, err = meter.Float64Histogram(MetricHTTPDuration,
		metric.WithDescription("HTTP request duration, including streamed bodies"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricHTTPDuration, err)
	}
	if m.active, err = meter.Int64UpDownCounter(MetricHTTPActiveRequests,
		metric.WithDescription("HTTP requests in flight"),
	); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricHTTPActiveRequests, err)
	}
	if m.errors, err = meter.Int64Counter(MetricErrors,
		metric.WithDescription("Server-side errors by type and component"),
	); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricErrors, err)
	}
	if m.rejected, err = meter.Int64Counter(MetricRejected,
		metric.WithDescription("Requests turned away by a concurrency limit"),
	); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricRejected, err)
	}
	return &m, nil
}

// RecordRequestStart counts a request as in flight.
func (m *Metrics) RecordRequestStart(ctx context.Context, method string) {
	m.active.Add(ctx, 1, metric.WithAttributes(attribute.String("http.request.method", method)))
}

// RecordRequestEnd ends an in-flight request and records its outcome.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, method string, status int, d time.Duration) {
	m.active.Add(ctx, -1, metric.WithAttributes(attribute.String("http.request.method", method)))
	attrs := metric.WithAttributes(
		attribute.String(AttrServiceName, service),
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_code", strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// RecordError counts an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}

// RecordRejected counts a request refused by the named limiter.
func (m *Metrics) RecordRejected(ctx context.Context, limiter string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}
