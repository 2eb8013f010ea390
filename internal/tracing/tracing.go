// Package tracing provides the span pipeline for backend calls. Finished spans are
// written to the structured log.
package tracing

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes each finished span as one debug log line.
type LogExporter struct {
	Logger zerolog.Logger
}

var _ sdktrace.SpanExporter = LogExporter{}

func (e LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		event := e.Logger.Debug().
			Str("span", span.Name()).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Dur("duration", span.EndTime().Sub(span.StartTime()))
		for _, kv := range span.Attributes() {
			addAttribute(event, kv)
		}
		if status := span.Status(); status.Description != "" {
			event = event.Str("status", status.Description)
		}
		event.Msg("span")
	}
	return nil
}

func (e LogExporter) Shutdown(context.Context) error {
	return nil
}

func addAttribute(event *zerolog.Event, kv attribute.KeyValue) {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		event.Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		event.Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		event.Float64(key, kv.Value.AsFloat64())
	default:
		event.Str(key, kv.Value.Emit())
	}
}

// NewProvider returns a tracer provider that exports every span synchronously to
// logger. Callers own it and should Shutdown it on exit.
func NewProvider(logger zerolog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(LogExporter{Logger: logger}))
}
