// Package observability provides logging, metrics, tracing, health checks
// and shutdown handling for the plugin host.
//
// # Logging
//
// The host logs through logrus. Each mod gets its own channel:
//
//	logger, err := observability.NewLogger("info", observability.FormatText, os.Stderr)
//	observability.ModLogger(logger, "Farming").Info("Loaded")
//
// Panics raised by plugin code are turned into errors or logged:
//
//	defer observability.RecoverPanic(logger, "mod dispose")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordLoadResult("failed", "missing_dependencies")
//	http.Handle("/metrics", observability.Handler(registry))
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "modhost",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/api: serves /metrics and /healthz
package observability
