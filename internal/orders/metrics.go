package orders

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type checkoutMetrics struct {
	committed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newCheckoutMetrics() *checkoutMetrics {
	meter := otel.Meter("orders")

	// Instrument creation only fails on invalid names; noop instruments are
	// returned alongside the error.
	committed, _ := meter.Int64Counter("checkout.committed",
		metric.WithDescription("Checkouts committed"))
	failed, _ := meter.Int64Counter("checkout.failed",
		metric.WithDescription("Checkouts that ended in the failed state"))
	duration, _ := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("Checkout latency"), metric.WithUnit("s"))

	return &checkoutMetrics{committed: committed, failed: failed, duration: duration}
}

func (m *checkoutMetrics) record(ctx context.Context, start time.Time, reason string) {
	state := string(StateCommitted)
	if reason != "" {
		state = string(StateFailed)
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	} else {
		m.committed.Add(ctx, 1)
	}
	m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("state", state)))
}
