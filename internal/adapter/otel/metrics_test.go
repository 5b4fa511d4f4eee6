package otel

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Strob0t/taskdeck/internal/config"
)

func TestMetricsRecordOperation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	ctx := context.Background()

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	m.RecordOperation(ctx, "create", "OK", 5*time.Millisecond)
	m.RecordOperation(ctx, "create", "VALIDATION_ERROR", time.Millisecond)
	m.RecordEvent(ctx, "task.created", "ws")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			if md.Name == "taskdeck.task.operations" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("unexpected data type %T", md.Data)
				}
				if len(sum.DataPoints) != 2 {
					t.Errorf("expected 2 series (one per code), got %d", len(sum.DataPoints))
				}
			}
		}
	}
	for _, name := range []string{"taskdeck.task.operations", "taskdeck.task.operation.duration_seconds", "taskdeck.events.published"} {
		if !found[name] {
			t.Errorf("metric %s not collected", name)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordOperation(context.Background(), "get", "OK", time.Millisecond)
	m.RecordEvent(context.Background(), "task.deleted", "nats")
}

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.OTEL{ServiceName: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStartTaskSpan(t *testing.T) {
	ctx, span := StartTaskSpan(context.Background(), "get", "abc")
	if ctx == nil || span == nil {
		t.Fatal("expected span and context")
	}
	EndSpan(span, nil)
}
