package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskdeck"

// StartTaskSpan starts a span for a task service operation. taskID may be empty.
func StartTaskSpan(ctx context.Context, op, taskID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("task.op", op)}
	if taskID != "" {
		attrs = append(attrs, attribute.String("task.id", taskID))
	}
	return otel.Tracer(tracerName).Start(ctx, "task."+op, trace.WithAttributes(attrs...))
}

// StartCommandSpan starts a span for a natural-language command.
func StartCommandSpan(ctx context.Context, verb string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "command",
		trace.WithAttributes(attribute.String("command.verb", verb)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
