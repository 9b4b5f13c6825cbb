package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels a finished codec operation.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeInvalidKey Outcome = "invalid_key"
	OutcomeDenied     Outcome = "denied"
	OutcomeError      Outcome = "error"
)

var (
	metricsOnce         sync.Once
	metricsInitErr      error
	operationCounter    metric.Int64Counter
	characterCounter    metric.Int64Counter
	operationDurationMs metric.Float64Histogram
)

// CodecMetrics captures the fields recorded for one encode or decode call.
type CodecMetrics struct {
	Operation  string
	KeySource  string // "inline" or "stored"
	Outcome    Outcome
	Characters int
	Duration   time.Duration
}

// RecordCodecMetrics emits counters and histograms that describe codec usage.
func RecordCodecMetrics(ctx context.Context, m CodecMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("cipher.operation", m.Operation),
		attribute.String("cipher.key_source", m.KeySource),
		attribute.String("cipher.outcome", string(m.Outcome)),
	)

	operationCounter.Add(ctx, 1, attrs)

	if m.Characters > 0 && m.Outcome == OutcomeSuccess {
		characterCounter.Add(ctx, int64(m.Characters), attrs)
	}

	if m.Duration > 0 {
		operationDurationMs.Record(ctx, float64(m.Duration)/float64(time.Millisecond), attrs)
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(TracerName)

		operationCounter, metricsInitErr = meter.Int64Counter(
			"cipher.operations_total",
			metric.WithDescription("Codec operations partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		characterCounter, metricsInitErr = meter.Int64Counter(
			"cipher.characters_total",
			metric.WithDescription("Characters transformed by successful codec operations"),
			metric.WithUnit("{char}"),
		)
		if metricsInitErr != nil {
			return
		}

		operationDurationMs, metricsInitErr = meter.Float64Histogram(
			"cipher.duration_ms",
			metric.WithDescription("Observed codec operation latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
