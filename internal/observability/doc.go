// Package observability provides logging, metrics, and tracing for the proxy.
//
// Logging goes through the Logger interface backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("route table loaded", observability.Int("routes", 12))
//
// Metrics are collected in a dedicated Prometheus registry exposed through
// Metrics.Handler. Packages with their own collectors (the transform engine,
// for example) register them with Metrics.Registry.
//
// Tracing uses OpenTelemetry with OTLP gRPC export. TracingMiddleware opens a
// server span per request and stores trace and span IDs in the context so
// that WithContext loggers pick them up.
package observability
