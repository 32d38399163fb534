package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for pipeline runs.
// A nil *Metrics records nothing.
type Metrics struct {
	produced    metric.Int64Counter
	failures    metric.Int64Counter
	consumed    metric.Int64Counter
	markers     metric.Int64Counter
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	produced, err := meter.Int64Counter("queuekit.items.produced",
		metric.WithDescription("Items pushed onto the queue by producers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queuekit.items.produced counter: %w", err)
	}

	failures, err := meter.Int64Counter("queuekit.generation.failures",
		metric.WithDescription("Generation failures reported and skipped by producers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queuekit.generation.failures counter: %w", err)
	}

	consumed, err := meter.Int64Counter("queuekit.items.consumed",
		metric.WithDescription("Items popped and transformed by the consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queuekit.items.consumed counter: %w", err)
	}

	markers, err := meter.Int64Counter("queuekit.consumer.markers",
		metric.WithDescription("Break and cancel markers emitted by the consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queuekit.consumer.markers counter: %w", err)
	}

	runs, err := meter.Int64Counter("queuekit.runs",
		metric.WithDescription("Completed pipeline runs by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queuekit.runs counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram("queuekit.run.duration",
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queuekit.run.duration histogram: %w", err)
	}

	return &Metrics{
		produced:    produced,
		failures:    failures,
		consumed:    consumed,
		markers:     markers,
		runs:        runs,
		runDuration: runDuration,
	}, nil
}

// RecordProduced counts one item pushed by the producer for source.
func (m *Metrics) RecordProduced(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.produced.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordFailure counts one skipped generation failure.
func (m *Metrics) RecordFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordConsumed counts one transformed item.
func (m *Metrics) RecordConsumed(ctx context.Context) {
	if m == nil {
		return
	}
	m.consumed.Add(ctx, 1)
}

// RecordMarker counts one emitted marker of the given kind.
func (m *Metrics) RecordMarker(ctx context.Context, kind ResultKind) {
	if m == nil {
		return
	}
	m.markers.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

// RecordRun records a finished run and its outcome.
func (m *Metrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.runDuration.Record(ctx, d.Seconds())
}
