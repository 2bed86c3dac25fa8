// Package trace wraps OpenTelemetry span handling behind the two calls the
// rest of the tool needs: one-time init and per-step span creation.
package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const PERFORMANCE_REPORT_FILE_NAME = "performance-report.json"

var tracerName = "conda-envsync"

// InitTracer installs the global tracer provider. When exportSpans is set,
// finished spans are written as JSON to performance-report.json in outputDir.
// The returned shutdown function flushes and must be deferred by the caller.
func InitTracer(serviceName string, exportSpans bool, outputDir string) (func(), error) {
	tracerName = serviceName

	if !exportSpans {
		provider := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return func() { _ = provider.Shutdown(context.Background()) }, nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	filePath := filepath.Join(outputDir, PERFORMANCE_REPORT_FILE_NAME)
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create performance report file: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	shutdown := func() {
		_ = provider.Shutdown(context.Background())
		_ = file.Close()
	}
	return shutdown, nil
}

// StartSpan starts a span on the global tracer
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
