package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sample is one row of per-kind statistics handed to the collector.
type Sample struct {
	Kind     string
	Received int64
	Consumed int64
	Failed   int64
}

// Collector exports per-kind counters to Prometheus. The source function
// is called on every scrape.
type Collector struct {
	source    func() []Sample
	remaining func() int64
	received  *prometheus.Desc
	consumed  *prometheus.Desc
	failed    *prometheus.Desc
	free      *prometheus.Desc
}

// NewCollector creates a collector under namespace (default "tsdispatch").
// remaining may be nil.
func NewCollector(namespace string, source func() []Sample, remaining func() int64) *Collector {
	if namespace == "" {
		namespace = "tsdispatch"
	}
	labels := []string{"kind"}
	return &Collector{
		source:    source,
		remaining: remaining,
		received: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "received_total"),
			"Events received by adapters, summed across adapters",
			labels, nil),
		consumed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "consumed_total"),
			"Consumer invocations for matching events",
			labels, nil),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "failed_total"),
			"Consumer invocations that returned an error or panicked",
			labels, nil),
		free: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ring", "remaining_slots"),
			"Free ring buffer slots",
			nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.received
	ch <- c.consumed
	ch <- c.failed
	if c.remaining != nil {
		ch <- c.free
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(s.Received), s.Kind)
		ch <- prometheus.MustNewConstMetric(c.consumed, prometheus.CounterValue, float64(s.Consumed), s.Kind)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed), s.Kind)
	}
	if c.remaining != nil {
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(c.remaining()))
	}
}

var _ prometheus.Collector = (*Collector)(nil)
