package adapter

import (
	"context"
	"fmt"

	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/deferred"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Search feeds search-audience events: metadata and annotation indexing
// and queries.
type Search struct {
	base
	tracer trace.Tracer
}

// NewSearch creates a search adapter for e.
func NewSearch(e *tsdispatch.Engine, opts ...Option) *Search {
	o := newOptions(opts...)
	return &Search{
		base:   newBase(e),
		tracer: o.tracerProvider.Tracer(tracerName),
	}
}

func (s *Search) IndexTSMeta(m *tsdispatch.TSMeta) *deferred.Deferred[struct{}] {
	if m == nil {
		return done
	}
	return s.enqueue(tsdispatch.KindTSMetaIndex, func(ev *tsdispatch.Event) { ev.SetTSMetaIndex(m) })
}

func (s *Search) DeleteTSMeta(tsuid string) *deferred.Deferred[struct{}] {
	if tsuid == "" {
		return done
	}
	return s.enqueue(tsdispatch.KindTSMetaDelete, func(ev *tsdispatch.Event) { ev.SetTSMetaDelete(tsuid) })
}

func (s *Search) IndexUIDMeta(m *tsdispatch.UIDMeta) *deferred.Deferred[struct{}] {
	if m == nil {
		return done
	}
	return s.enqueue(tsdispatch.KindUIDMetaIndex, func(ev *tsdispatch.Event) { ev.SetUIDMetaIndex(m) })
}

func (s *Search) DeleteUIDMeta(m *tsdispatch.UIDMeta) *deferred.Deferred[struct{}] {
	if m == nil {
		return done
	}
	return s.enqueue(tsdispatch.KindUIDMetaDelete, func(ev *tsdispatch.Event) { ev.SetUIDMetaDelete(m) })
}

func (s *Search) IndexAnnotation(a *tsdispatch.Annotation) *deferred.Deferred[struct{}] {
	if a == nil {
		return done
	}
	return s.enqueue(tsdispatch.KindAnnotationIndex, func(ev *tsdispatch.Event) { ev.SetAnnotationIndex(a) })
}

func (s *Search) DeleteAnnotation(a *tsdispatch.Annotation) *deferred.Deferred[struct{}] {
	if a == nil {
		return done
	}
	return s.enqueue(tsdispatch.KindAnnotationDelete, func(ev *tsdispatch.Event) { ev.SetAnnotationDelete(a) })
}

// ExecuteQuery enqueues q and returns a handle the answering consumer
// completes with q itself, filled with results. The handle stays pending
// while no consumer answers; if ctx ends first the handle is rejected
// with ctx.Err().
func (s *Search) ExecuteQuery(ctx context.Context, q *tsdispatch.SearchQuery) *deferred.Deferred[*tsdispatch.SearchQuery] {
	if q == nil {
		return deferred.Failed[*tsdispatch.SearchQuery](fmt.Errorf("%w: nil search query", tsdispatch.ErrInvalidArgument))
	}

	ctx, span := s.tracer.Start(ctx, "search.query",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("search.type", string(q.Type)),
			attribute.String("search.query", q.Query),
			attribute.Int("search.limit", q.Limit)))

	result := deferred.New[*tsdispatch.SearchQuery]()
	err := s.engine.Publish(func(ev *tsdispatch.Event) { ev.SetSearchQuery(q, result) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return deferred.Failed[*tsdispatch.SearchQuery](err)
	}
	s.received.Inc(tsdispatch.KindSearchQuery.Ordinal())

	go watchQuery(ctx, span, result)
	return result
}

// watchQuery ends the query span once the result completes or ctx ends.
func watchQuery(ctx context.Context, span trace.Span, result *deferred.Deferred[*tsdispatch.SearchQuery]) {
	defer span.End()
	select {
	case <-result.Done():
	case <-ctx.Done():
		result.Reject(ctx.Err())
	}
	q, err := result.Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if q != nil {
		span.SetAttributes(attribute.Int("search.total_results", q.TotalResults))
	}
}
