package reconcile

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type engineMetrics struct {
	cycles   metric.Int64Counter
	synced   metric.Int64Counter
	pushed   metric.Int64Counter
	failures metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter("reconcile")

	cycles, _ := meter.Int64Counter("reconcile.cycles",
		metric.WithDescription("Reconciliation cycles started"))
	synced, _ := meter.Int64Counter("reconcile.products_synced",
		metric.WithDescription("Products written to the satellite cache"))
	pushed, _ := meter.Int64Counter("reconcile.identities_pushed",
		metric.WithDescription("Chat identities mapped to a canonical user"))
	failures, _ := meter.Int64Counter("reconcile.failures",
		metric.WithDescription("Failed reconciliation duties"))

	return &engineMetrics{cycles: cycles, synced: synced, pushed: pushed, failures: failures}
}

func (m *engineMetrics) fail(ctx context.Context, duty string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("duty", duty)))
}
