// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("branch_id", id).Info("branch created")
//
// # Prometheus Metrics
//
// Initialize metrics and expose them:
//
//	metrics := observability.InitMetrics()
//	http.Handle("/metrics", metrics.Handler())
//	metrics.EventsEmittedTotal.WithLabelValues("BRANCH_CREATED").Inc()
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		ServiceName: "backoffice",
//		Endpoint:    "otel-collector:4317",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
