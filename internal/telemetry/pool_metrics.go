package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/leasepool/internal/pool"
)

const (
	metricOperations = "pool.operations"
	metricGrowSize   = "pool.grow.size"
	metricFree       = "pool.objects.free"
	metricAllocated  = "pool.objects.allocated"
	metricLeased     = "pool.objects.leased"
)

// PoolMetrics records pool lifecycle events as OpenTelemetry instruments.
// It implements pool.Observer; attach one per pool with pool.WithObserver.
// The last status seen is kept for readers on other goroutines.
type PoolMetrics struct {
	operations metric.Int64Counter
	growSize   metric.Int64Histogram
	free       metric.Int64Gauge
	allocated  metric.Int64Gauge
	leased     metric.Int64Gauge

	attrs       []attribute.KeyValue
	acquireOK   metric.MeasurementOption
	acquireFail metric.MeasurementOption
	releaseOK   metric.MeasurementOption
	base        metric.MeasurementOption

	latest atomic.Pointer[pool.Status]
}

var _ pool.Observer = (*PoolMetrics)(nil)

// NewPoolMetrics creates the instruments on meter. Attributes are bound from
// the pool's name, capacity and growth factor.
func NewPoolMetrics(meter metric.Meter, environment string, policy pool.Policy, poolName string) (*PoolMetrics, error) {
	m := new(PoolMetrics)

	var err error
	if m.operations, err = meter.Int64Counter(metricOperations,
		metric.WithDescription("Pool acquire and release operations by result"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperations, err)
	}
	if m.growSize, err = meter.Int64Histogram(metricGrowSize,
		metric.WithDescription("Instances constructed per growth event"),
		metric.WithUnit("{object}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGrowSize, err)
	}
	if m.free, err = meter.Int64Gauge(metricFree,
		metric.WithDescription("Instances on the free list"),
		metric.WithUnit("{object}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFree, err)
	}
	if m.allocated, err = meter.Int64Gauge(metricAllocated,
		metric.WithDescription("Instances constructed so far"),
		metric.WithUnit("{object}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAllocated, err)
	}
	if m.leased, err = meter.Int64Gauge(metricLeased,
		metric.WithDescription("Instances currently leased"),
		metric.WithUnit("{object}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLeased, err)
	}

	m.attrs = PoolAttributes(environment, poolName, policy.Capacity, policy.GrowthFactor)
	m.base = metric.WithAttributes(m.attrs...)
	m.acquireOK = metric.WithAttributes(OperationResultAttributes(m.attrs, OperationAcquire, ResultOK)...)
	m.acquireFail = metric.WithAttributes(OperationResultAttributes(m.attrs, OperationAcquire, ResultExhausted)...)
	m.releaseOK = metric.WithAttributes(OperationResultAttributes(m.attrs, OperationRelease, ResultOK)...)
	return m, nil
}

// OnAcquire implements pool.Observer.
func (m *PoolMetrics) OnAcquire(s pool.Status) {
	m.operations.Add(context.Background(), 1, m.acquireOK)
	m.recordLevels(s)
}

// OnRelease implements pool.Observer.
func (m *PoolMetrics) OnRelease(s pool.Status) {
	m.operations.Add(context.Background(), 1, m.releaseOK)
	m.recordLevels(s)
}

// OnGrow implements pool.Observer.
func (m *PoolMetrics) OnGrow(n int, s pool.Status) {
	m.growSize.Record(context.Background(), int64(n), m.base)
	m.recordLevels(s)
}

// OnExhausted implements pool.Observer.
func (m *PoolMetrics) OnExhausted(s pool.Status) {
	m.operations.Add(context.Background(), 1, m.acquireFail)
	m.recordLevels(s)
}

// Statuses returns the snapshot published by the most recent pool event, or
// nil before the first one. Unlike Manager.Statuses it never touches the pool,
// so a scrape goroutine may call it while the pool is in use.
func (m *PoolMetrics) Statuses() []pool.Status {
	s := m.latest.Load()
	if s == nil {
		return nil
	}
	return []pool.Status{*s}
}

func (m *PoolMetrics) recordLevels(s pool.Status) {
	m.latest.Store(&s)
	ctx := context.Background()
	m.free.Record(ctx, int64(s.Free), m.base)
	m.allocated.Record(ctx, int64(s.Allocated), m.base)
	m.leased.Record(ctx, int64(s.Leased), m.base)
}
