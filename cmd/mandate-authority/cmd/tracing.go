package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/mandate-authority/mandate-authority/internal/config"
)

// setupTracing installs a global TracerProvider when cfg.Tracing is
// enabled, exporting spans to stdout for local inspection (spec §4's
// "never a load-bearing correctness mechanism" tracing is opt-in
// convenience, grounded on the teacher's own stdouttrace wiring for
// the same reason: no tracing backend to stand up for local dev). When
// disabled, it installs otel's no-op provider so
// IssuanceService's span calls are inert rather than absent.
func setupTracing(cfg *config.Config, logger *slog.Logger) (func(context.Context) error, error) {
	if !cfg.Tracing.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "mandate-authority"
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled", "service_name", serviceName, "exporter", "stdout")

	return tp.Shutdown, nil
}
