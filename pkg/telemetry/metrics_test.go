package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func installMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		ResetMetricsForTest()
	})

	ResetMetricsForTest()
	return reader
}

func TestRecordCodecMetrics(t *testing.T) {
	reader := installMeterProvider(t)
	ctx := context.Background()

	RecordCodecMetrics(ctx, CodecMetrics{
		Operation:  "encode",
		KeySource:  "inline",
		Outcome:    OutcomeSuccess,
		Characters: 11,
		Duration:   150 * time.Millisecond,
	})

	metrics := collectMetrics(t, reader)

	ops, ok := metrics["cipher.operations_total"]
	if !ok {
		t.Fatalf("missing cipher.operations_total metric")
	}
	opsData, ok := ops.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for operations metric")
	}
	if len(opsData.DataPoints) != 1 || opsData.DataPoints[0].Value != 1 {
		t.Fatalf("expected a single operation, got %+v", opsData.DataPoints)
	}
	if value, ok := opsData.DataPoints[0].Attributes.Value(attribute.Key("cipher.operation")); !ok || value.AsString() != "encode" {
		t.Fatalf("expected cipher.operation attribute to be encode, got %v", value)
	}

	chars := metrics["cipher.characters_total"].Data.(metricdata.Sum[int64])
	if chars.DataPoints[0].Value != 11 {
		t.Fatalf("expected 11 characters, got %d", chars.DataPoints[0].Value)
	}

	hist, ok := metrics["cipher.duration_ms"]
	if !ok {
		t.Fatalf("missing cipher.duration_ms metric")
	}
	histData := hist.Data.(metricdata.Histogram[float64])
	if histData.DataPoints[0].Count != 1 {
		t.Fatalf("expected histogram count 1, got %d", histData.DataPoints[0].Count)
	}
	if histData.DataPoints[0].Sum != 150 {
		t.Fatalf("expected histogram sum 150, got %v", histData.DataPoints[0].Sum)
	}
}

func TestRecordCodecMetricsSkipsCharactersOnFailure(t *testing.T) {
	reader := installMeterProvider(t)

	RecordCodecMetrics(context.Background(), CodecMetrics{
		Operation:  "decode",
		KeySource:  "stored",
		Outcome:    OutcomeInvalidKey,
		Characters: 4,
	})

	metrics := collectMetrics(t, reader)
	if _, ok := metrics["cipher.operations_total"]; !ok {
		t.Fatalf("missing cipher.operations_total metric")
	}
	if m, ok := metrics["cipher.characters_total"]; ok {
		if data := m.Data.(metricdata.Sum[int64]); len(data.DataPoints) != 0 {
			t.Fatalf("expected no character datapoints, got %+v", data.DataPoints)
		}
	}
}

func TestRecordPolicyDecision(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	_, span := tracer.Start(context.Background(), "cipher.encode")
	RecordPolicyDecision(span, true, "too long")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 || events[0].Name != "policy.decision" {
		t.Fatalf("expected a policy.decision event, got %+v", events)
	}

	attrs := attribute.NewSet(events[0].Attributes...)
	if value, ok := attrs.Value(attribute.Key("policy.blocked")); !ok || !value.AsBool() {
		t.Fatalf("expected policy.blocked attribute true")
	}
	if value, ok := attrs.Value(attribute.Key("policy.block_reason")); !ok || value.AsString() != "too long" {
		t.Fatalf("expected block_reason 'too long', got %v", value)
	}

	RecordPolicyDecision(nil, false, "")

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown tracer provider: %v", err)
	}
}
