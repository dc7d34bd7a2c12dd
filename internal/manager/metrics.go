package manager

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("codegraph.manager")
	meter  = otel.Meter("codegraph.manager")
)

var (
	filesIndexed     metric.Int64Counter
	parseFailures    metric.Int64Counter
	indexDuration    metric.Float64Histogram
	projectsBuilt    metric.Int64Counter
	metricsInitOnce  sync.Once
	metricsInitError error
)

func initMetrics() error {
	metricsInitOnce.Do(func() {
		var err error
		if filesIndexed, err = meter.Int64Counter("index_files_total",
			metric.WithDescription("Primary files extracted and merged into the store")); err != nil {
			metricsInitError = err
			return
		}
		if parseFailures, err = meter.Int64Counter("index_parse_failures_total",
			metric.WithDescription("Files that failed extraction")); err != nil {
			metricsInitError = err
			return
		}
		if indexDuration, err = meter.Float64Histogram("index_duration_seconds",
			metric.WithDescription("Duration of full and incremental index runs"),
			metric.WithUnit("s")); err != nil {
			metricsInitError = err
			return
		}
		if projectsBuilt, err = meter.Int64Counter("registry_builds_total",
			metric.WithDescription("Auxiliary project catalog builds, by outcome")); err != nil {
			metricsInitError = err
			return
		}
	})
	return metricsInitError
}

func recordIndexed(ctx context.Context, files, failures int) {
	if err := initMetrics(); err != nil {
		return
	}
	filesIndexed.Add(ctx, int64(files))
	if failures > 0 {
		parseFailures.Add(ctx, int64(failures))
	}
}

func recordIndexRun(ctx context.Context, kind string, seconds float64) {
	if err := initMetrics(); err != nil {
		return
	}
	indexDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordProjectBuild(ctx context.Context, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	outcome := "built"
	if !ok {
		outcome = "failed"
	}
	projectsBuilt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
