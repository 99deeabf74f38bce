// Package adapter translates host callbacks into engine events.
//
// Adapters are thin: each call claims a slot, fills it, commits it and
// bumps the adapter's own received counter. Index, delete and publish
// calls return an already completed handle without waiting for consumers.
// Search queries return a pending handle that the answering consumer
// completes. Nil payloads are ignored, except for queries, whose caller
// is waiting on a result and gets a failed handle instead.
package adapter

import (
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/deferred"
	"github.com/rbaliyan/tsdispatch/stats"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rbaliyan/tsdispatch/adapter"

// done is shared by every fire-and-forget call that was accepted or ignored.
var done = deferred.Resolved(struct{}{})

// Done returns the completed handle returned for accepted and ignored calls.
func Done() *deferred.Deferred[struct{}] {
	return done
}

type options struct {
	tracerProvider trace.TracerProvider
}

// Option configures an adapter.
type Option func(*options)

// WithTracerProvider sets the provider for query spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{tracerProvider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// base is shared by the adapters.
type base struct {
	engine   *tsdispatch.Engine
	received *stats.Set
}

func newBase(e *tsdispatch.Engine) base {
	return base{engine: e, received: e.ReceivedCounters()}
}

// enqueue publishes one event of kind k.
func (b *base) enqueue(k tsdispatch.Kind, fill func(*tsdispatch.Event)) *deferred.Deferred[struct{}] {
	if err := b.engine.Publish(fill); err != nil {
		return deferred.Failed[struct{}](err)
	}
	b.received.Inc(k.Ordinal())
	return done
}

// Received returns this adapter's received count per kind ordinal.
func (b *base) Received() []int64 {
	return b.received.Snapshot()
}

// Engine returns the engine the adapter feeds.
func (b *base) Engine() *tsdispatch.Engine {
	return b.engine
}
