package adapter

import (
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/deferred"
)

// Publish feeds real time publish events: data points and annotations.
type Publish struct {
	base
}

// NewPublish creates a publish adapter for e.
func NewPublish(e *tsdispatch.Engine) *Publish {
	return &Publish{base: newBase(e)}
}

// PublishDataPoint enqueues an integer data point. An empty metric is ignored.
func (p *Publish) PublishDataPoint(metric string, timestamp, value int64, tags map[string]string, tsuid string) *deferred.Deferred[struct{}] {
	if metric == "" {
		return done
	}
	return p.enqueue(tsdispatch.KindDataPointLong, func(ev *tsdispatch.Event) {
		ev.SetLongDataPoint(metric, timestamp, value, tags, tsuid)
	})
}

// PublishDoubleDataPoint enqueues a floating point data point. An empty metric is ignored.
func (p *Publish) PublishDoubleDataPoint(metric string, timestamp int64, value float64, tags map[string]string, tsuid string) *deferred.Deferred[struct{}] {
	if metric == "" {
		return done
	}
	return p.enqueue(tsdispatch.KindDataPointDouble, func(ev *tsdispatch.Event) {
		ev.SetDoubleDataPoint(metric, timestamp, value, tags, tsuid)
	})
}

func (p *Publish) PublishAnnotation(a *tsdispatch.Annotation) *deferred.Deferred[struct{}] {
	if a == nil {
		return done
	}
	return p.enqueue(tsdispatch.KindAnnotationPublish, func(ev *tsdispatch.Event) { ev.SetAnnotationPublish(a) })
}
