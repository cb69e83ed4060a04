package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachpo/leasepool/internal/pool"
)

// StatusSource yields the pool snapshots to export, usually Manager.Statuses.
type StatusSource func() []pool.Status

// StatusCollector exports pool status snapshots as Prometheus gauges at
// scrape time.
type StatusCollector struct {
	source    StatusSource
	free      *prometheus.Desc
	allocated *prometheus.Desc
	leased    *prometheus.Desc
	capacity  *prometheus.Desc
	closed    *prometheus.Desc
}

var _ prometheus.Collector = (*StatusCollector)(nil)

// NewStatusCollector builds a collector over source.
func NewStatusCollector(source StatusSource) *StatusCollector {
	labels := []string{"pool", "capacity", "growth_factor"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("leasepool", "pool", name), help, labels, nil)
	}
	return &StatusCollector{
		source:    source,
		free:      desc("free_objects", "Instances on the free list."),
		allocated: desc("allocated_objects", "Instances constructed so far."),
		leased:    desc("leased_objects", "Instances currently leased."),
		capacity:  desc("capacity_objects", "Hard upper bound on constructed instances."),
		closed:    desc("closed", "1 when the pool has been closed."),
	}
}

// RegisterStatusCollector registers a collector over source with reg,
// falling back to the default registerer.
func RegisterStatusCollector(reg prometheus.Registerer, source StatusSource) (*StatusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewStatusCollector(source)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.free
	ch <- c.allocated
	ch <- c.leased
	ch <- c.capacity
	ch <- c.closed
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for _, s := range c.source() {
		labels := []string{s.Name, strconv.Itoa(s.Capacity), strconv.Itoa(s.GrowthFactor)}
		closed := 0.0
		if s.Closed {
			closed = 1
		}
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(s.Free), labels...)
		ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.GaugeValue, float64(s.Allocated), labels...)
		ch <- prometheus.MustNewConstMetric(c.leased, prometheus.GaugeValue, float64(s.Leased), labels...)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), labels...)
		ch <- prometheus.MustNewConstMetric(c.closed, prometheus.GaugeValue, closed, labels...)
	}
}
