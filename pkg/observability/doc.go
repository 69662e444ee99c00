// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the observability plumbing of the API server: JSON
// logging, admission and HTTP metrics, dependency health checks, panic logging
// and ordered shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.ParseLogLevel("info"), os.Stdout)
//	logger.WithField("route", "/api/members").Info("request admitted")
//
// Request-scoped logging picks up the request and user IDs:
//
//	observability.FromContext(r.Context()).Warn("rate limit store unavailable")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version).
//		AddCritical("database", db).
//		AddOptional("redis", observability.PingFunc(store.Ping))
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "dernek",
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/httputil: request logging middleware
package observability
