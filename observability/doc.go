// Package observability wires OpenTelemetry tracing and metrics.
//
// The Telemetry component initializes OTLP/HTTP tracer and meter providers on
// Start and flushes them on Stop. When disabled, the global no-op providers
// stay in place and instruments record nothing.
//
//	tel := observability.NewTelemetry(cfg.Telemetry, "queuekit", version.GetVersion(), "production")
//	app.RegisterComponent(tel)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
//	defer span.End()
//
// Health:
//
//	health := observability.NewServiceHealth("queuekit", "1.0.0")
//	health.AddComponent(observability.Health{Name: "server", Status: observability.HealthStatusUp})
package observability
