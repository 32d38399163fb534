package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/queuekit/component"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	ctx := context.Background()
	metrics.RecordRequestStart(ctx, "POST")
	metrics.RecordRequestEnd(ctx, "queuekit", "POST", 200, 100*time.Millisecond)
	metrics.RecordError(ctx, "validation", "server")
	metrics.RecordRejected(ctx, "pipeline runner")
}

func TestStartSpanRecords(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanPipelineRun)
	SetSpanAttribute(ctx, AttrRunID, "run-1")
	SetSpanAttribute(ctx, "producers", 4)
	SetSpanAttribute(ctx, "int64", int64(100))
	SetSpanAttribute(ctx, "ratio", 0.5)
	SetSpanAttribute(ctx, "idle", true)
	SetSpanAttribute(ctx, "sources", []string{"abc", "xyz"})
	SetSpanAttribute(ctx, "ignored", struct{}{})
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != SpanPipelineRun {
		t.Errorf("unexpected span name %q", s.Name())
	}
	if len(s.Attributes()) != 6 {
		t.Errorf("expected 6 attributes, got %v", s.Attributes())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected the error event, got %v", s.Events())
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil noop span")
	}
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span"))
}

func TestSamplerFor(t *testing.T) {
	tests := map[float64]string{
		1.0: "AlwaysOnSampler",
		0:   "AlwaysOffSampler",
		0.5: "TraceIDRatioBased{0.5}",
	}
	for rate, want := range tests {
		if got := samplerFor(rate).Description(); got != want {
			t.Errorf("samplerFor(%v) = %q, want %q", rate, got, want)
		}
	}
}

func TestNewResource(t *testing.T) {
	res, err := Identity{Service: "queuekit", Version: "1.2.3", Environment: "test"}.resource()
	if err != nil {
		t.Fatalf("resource merge failed: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == AttrServiceName && kv.Value.AsString() == "queuekit" {
			found = true
		}
	}
	if !found {
		t.Errorf("service.name missing from %v", res.Attributes())
	}
}

func TestInitTracerAndMeter(t *testing.T) {
	ctx := context.Background()
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	cfg := Config{Enabled: true, Insecure: true}
	cfg.ApplyDefaults()
	id := Identity{Service: "queuekit", Version: "dev", Environment: "test"}
	tp, err := InitTracer(ctx, cfg, id)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	mp, err := InitMeter(ctx, cfg, id)
	if err != nil {
		t.Fatalf("InitMeter: %v", err)
	}

	// no collector is listening; shutdown must not hang past the deadline
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = tp.Shutdown(shutdownCtx)
	_ = mp.Shutdown(shutdownCtx)
}

func TestTelemetryDisabled(t *testing.T) {
	tel := NewTelemetry(Config{}, "queuekit", "dev", "test")
	if h := tel.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %v", h)
	}
	if err := tel.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := tel.Health(context.Background())
	if h.Status != component.StatusHealthy || h.Message != "export disabled" {
		t.Errorf("unexpected health %v", h)
	}
	if d := tel.Describe(); d.Details != "disabled" || d.Type != "telemetry" {
		t.Errorf("unexpected description %+v", d)
	}
	if err := tel.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTelemetryConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
}

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("queuekit", "1.0.0")
	if sh.Status != HealthStatusUp {
		t.Fatalf("expected up, got %s", sh.Status)
	}
	sh.AddComponent(FromComponent(component.Health{Name: "telemetry", Status: component.StatusDegraded}))
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", sh.Status)
	}
	sh.AddComponent(FromComponent(component.Health{Name: "server", Status: component.StatusUnhealthy, Message: "closed"}))
	if sh.Status != HealthStatusDown {
		t.Errorf("expected down, got %s", sh.Status)
	}
	sh.AddComponent(Health{Name: "late", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Error("degraded must not override down")
	}
	if len(sh.Components) != 3 || sh.Components[1].Message != "closed" {
		t.Errorf("unexpected components %+v", sh.Components)
	}
}
