package orchestrator

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/orchestrator"

var (
	turnDurationHistogram metric.Float64Histogram
	turnMetricsOnce       sync.Once
	turnMetricsRegistered bool
)

func initTurnMetrics() {
	meter := otel.Meter(meterName)
	var err error
	turnDurationHistogram, err = meter.Float64Histogram(
		"chatbuddy.turn.duration",
		metric.WithDescription("Wall-clock duration of one conversational turn"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	turnMetricsRegistered = true
}

// recordTurnMetrics records the per-turn latency histogram. Kind and outcome
// attributes allow filtering in observability backends.
func recordTurnMetrics(ctx context.Context, durationMS float64, kind, outcome string) {
	turnMetricsOnce.Do(initTurnMetrics)
	if !turnMetricsRegistered {
		return
	}
	turnDurationHistogram.Record(ctx, durationMS, metric.WithAttributes(
		attribute.String("handler_kind", kind),
		attribute.String("outcome", outcome),
	))
}
