package fs

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ctfer-io/lfs-station/global"
)

var (
	opsCounter     metric.Int64Counter
	opsCounterOnce sync.Once

	throughputHistogram     metric.Float64Histogram
	throughputHistogramOnce sync.Once
)

func OpsCounter() metric.Int64Counter {
	opsCounterOnce.Do(func() {
		cnt, err := global.Meter.Int64Counter("fs.operations",
			metric.WithDescription("The number of filesystem operations performed"),
		)
		if err != nil {
			panic(err)
		}
		opsCounter = cnt
	})
	return opsCounter
}

func ThroughputHistogram() metric.Float64Histogram {
	throughputHistogramOnce.Do(func() {
		hist, err := global.Meter.Float64Histogram("fs.benchmark.throughput",
			metric.WithDescription("The throughput measured by filesystem benchmarks"),
			metric.WithUnit("By/s"),
		)
		if err != nil {
			panic(err)
		}
		throughputHistogram = hist
	})
	return throughputHistogram
}

func record(ctx context.Context, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	OpsCounter().Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func recordThroughput(ctx context.Context, pass string, n int64, d time.Duration) {
	if d <= 0 {
		return
	}
	ThroughputHistogram().Record(ctx, float64(n)/d.Seconds(), metric.WithAttributes(
		attribute.String("pass", pass),
	))
}
