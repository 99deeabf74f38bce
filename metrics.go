package tsdispatch

import (
	"context"
	"time"

	"github.com/rbaliyan/tsdispatch/stats"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rbaliyan/tsdispatch"

// KindStats are the statistics of one kind. Received counts events
// accepted by adapters; Consumed counts consumer invocations, so one event
// may be consumed zero or several times. Failed is a subset of Consumed.
type KindStats struct {
	Kind     Kind
	Received int64
	Consumed int64
	Failed   int64
	P50      time.Duration
	P99      time.Duration
	Max      time.Duration
}

// Snapshot is a point in time view of the engine statistics.
type Snapshot struct {
	Kinds      []KindStats
	Capacity   int64
	Remaining  int64
	Cursor     int64
	Dispatched int64
}

// Kind returns the statistics for k.
func (s Snapshot) Kind(k Kind) KindStats {
	if int(k) < len(s.Kinds) {
		return s.Kinds[k]
	}
	return KindStats{Kind: k}
}

// Stats returns the current statistics. Latency is measured from commit
// to the end of dispatch.
func (e *Engine) Stats() Snapshot {
	received := e.received.Snapshot()
	s := Snapshot{
		Kinds:      make([]KindStats, NumKinds()),
		Capacity:   e.ring.Capacity(),
		Remaining:  e.ring.Remaining(),
		Cursor:     e.ring.Cursor(),
		Dispatched: e.ring.Dispatched(),
	}
	for i, k := range registry.kinds {
		q := e.disp.latency.Quantiles(i)
		s.Kinds[i] = KindStats{
			Kind:     k,
			Received: received[i],
			Consumed: e.disp.consumed.Load(i),
			Failed:   e.disp.failed.Load(i),
			P50:      q.P50,
			P99:      q.P99,
			Max:      q.Max,
		}
	}
	return s
}

func (e *Engine) samples() []stats.Sample {
	received := e.received.Snapshot()
	out := make([]stats.Sample, len(registry.kinds))
	for i, k := range registry.kinds {
		out[i] = stats.Sample{
			Kind:     k.String(),
			Received: received[i],
			Consumed: e.disp.consumed.Load(i),
			Failed:   e.disp.failed.Load(i),
		}
	}
	return out
}

// registerMetrics exposes the counters as OpenTelemetry observables.
func (e *Engine) registerMetrics(mp metric.MeterProvider) (metric.Registration, error) {
	meter := mp.Meter(meterName)

	received, err := meter.Int64ObservableCounter("tsdispatch.events.received",
		metric.WithDescription("Events accepted by adapters"))
	if err != nil {
		return nil, err
	}
	consumed, err := meter.Int64ObservableCounter("tsdispatch.events.consumed",
		metric.WithDescription("Consumer invocations for matching events"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64ObservableCounter("tsdispatch.events.failed",
		metric.WithDescription("Consumer invocations that failed"))
	if err != nil {
		return nil, err
	}
	remaining, err := meter.Int64ObservableGauge("tsdispatch.ring.remaining",
		metric.WithDescription("Free ring buffer slots"))
	if err != nil {
		return nil, err
	}

	attrs := make([]metric.ObserveOption, len(registry.kinds))
	for i, k := range registry.kinds {
		attrs[i] = metric.WithAttributes(attribute.String("kind", k.String()))
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, s := range e.samples() {
			o.ObserveInt64(received, s.Received, attrs[i])
			o.ObserveInt64(consumed, s.Consumed, attrs[i])
			o.ObserveInt64(failed, s.Failed, attrs[i])
		}
		o.ObserveInt64(remaining, e.ring.Remaining())
		return nil
	}, received, consumed, failed, remaining)
}
