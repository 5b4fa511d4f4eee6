package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskdeck"

// Metrics holds the task service instruments.
type Metrics struct {
	Operations metric.Int64Counter     // every service call, by op and outcome code
	Duration   metric.Float64Histogram // service call latency
	Events     metric.Int64Counter     // change events published, by type and sink
}

// NewMetrics creates the instruments on mp, or on the global provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Operations, err = meter.Int64Counter("taskdeck.task.operations",
		metric.WithDescription("Number of task operations, by operation and result code"))
	if err != nil {
		return nil, err
	}

	m.Duration, err = meter.Float64Histogram("taskdeck.task.operation.duration_seconds",
		metric.WithDescription("Task operation duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.Events, err = meter.Int64Counter("taskdeck.events.published",
		metric.WithDescription("Number of task change events published"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOperation records one finished task operation. code is "OK" on success.
// A nil receiver is a no-op.
func (m *Metrics) RecordOperation(ctx context.Context, op, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("code", code))
	m.Operations.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}

// RecordEvent counts one published event.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, sink string) {
	if m == nil {
		return
	}
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType), attribute.String("sink", sink)))
}
