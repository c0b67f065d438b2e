package scan

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// initTracer wires the stdout span exporter when SCANNER_TRACE=1 is set;
// otherwise spans are no-ops. Returns the tracer and a shutdown func.
func initTracer() (trace.Tracer, func(context.Context) error) {
	if os.Getenv("SCANNER_TRACE") != "1" {
		return noop.NewTracerProvider().Tracer("form4-scanner"), func(context.Context) error { return nil }
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return noop.NewTracerProvider().Tracer("form4-scanner"), func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Tracer("form4-scanner"), tp.Shutdown
}
