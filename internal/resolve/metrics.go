package resolve

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("codegraph.resolve")
	meter  = otel.Meter("codegraph.resolve")
)

var (
	referencesTotal metric.Int64Counter
	cacheLookups    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		referencesTotal, err = meter.Int64Counter(
			"resolve_references_total",
			metric.WithDescription("Unresolved primary references processed, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheLookups, err = meter.Int64Counter(
			"resolve_cache_lookups_total",
			metric.WithDescription("Structural classification cache lookups, by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordOutcomes(ctx context.Context, resolved, noMatch, ambiguous int) {
	if err := initMetrics(); err != nil {
		return
	}
	referencesTotal.Add(ctx, int64(resolved), metric.WithAttributes(attribute.String("outcome", "resolved")))
	referencesTotal.Add(ctx, int64(noMatch), metric.WithAttributes(attribute.String("outcome", ReasonNoMatch)))
	referencesTotal.Add(ctx, int64(ambiguous), metric.WithAttributes(attribute.String("outcome", ReasonAmbiguous)))
}

func recordCacheLookup(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
