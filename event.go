package tsdispatch

import (
	"time"

	"github.com/rbaliyan/tsdispatch/deferred"
)

// Event is one ring buffer slot. It holds any kind of event; a setter
// resets the slot and stamps the kind. The payload is only valid between
// commit and the end of dispatch, after which the slot is reused.
// Consumers must not keep the *Event or the pointers it returns past
// their Handle call.
type Event struct {
	seq       int64
	kind      Kind
	set       bool
	committed time.Time

	tsuid      string
	tsMeta     *TSMeta
	uidMeta    *UIDMeta
	annotation *Annotation
	point      DataPoint
	query      *SearchQuery
	result     *deferred.Deferred[*SearchQuery]
}

// Reset clears the slot.
func (e *Event) Reset() {
	*e = Event{}
}

func (e *Event) stamp(k Kind) {
	e.Reset()
	e.kind = k
	e.set = true
}

// SetTSMetaIndex fills the slot with a metadata index request.
func (e *Event) SetTSMetaIndex(m *TSMeta) {
	e.stamp(KindTSMetaIndex)
	e.tsMeta = m
	if m != nil {
		e.tsuid = m.TSUID
	}
}

// SetTSMetaDelete fills the slot with a metadata delete request.
func (e *Event) SetTSMetaDelete(tsuid string) {
	e.stamp(KindTSMetaDelete)
	e.tsuid = tsuid
}

func (e *Event) SetUIDMetaIndex(m *UIDMeta) {
	e.stamp(KindUIDMetaIndex)
	e.uidMeta = m
}

func (e *Event) SetUIDMetaDelete(m *UIDMeta) {
	e.stamp(KindUIDMetaDelete)
	e.uidMeta = m
}

func (e *Event) SetAnnotationIndex(a *Annotation) {
	e.stamp(KindAnnotationIndex)
	e.annotation = a
	if a != nil {
		e.tsuid = a.TSUID
	}
}

func (e *Event) SetAnnotationDelete(a *Annotation) {
	e.stamp(KindAnnotationDelete)
	e.annotation = a
	if a != nil {
		e.tsuid = a.TSUID
	}
}

// SetAnnotationPublish fills the slot with an annotation for real time publishers.
func (e *Event) SetAnnotationPublish(a *Annotation) {
	e.stamp(KindAnnotationPublish)
	e.annotation = a
	if a != nil {
		e.tsuid = a.TSUID
	}
}

// SetLongDataPoint fills the slot with an integer data point.
func (e *Event) SetLongDataPoint(metric string, timestamp, value int64, tags map[string]string, tsuid string) {
	e.stamp(KindDataPointLong)
	e.point = DataPoint{Metric: metric, Timestamp: timestamp, Long: value, Tags: tags, TSUID: tsuid}
	e.tsuid = tsuid
}

// SetDoubleDataPoint fills the slot with a floating point data point.
func (e *Event) SetDoubleDataPoint(metric string, timestamp int64, value float64, tags map[string]string, tsuid string) {
	e.stamp(KindDataPointDouble)
	e.point = DataPoint{Metric: metric, Timestamp: timestamp, Double: value, IsDouble: true, Tags: tags, TSUID: tsuid}
	e.tsuid = tsuid
}

// SetSearchQuery fills the slot with a query. The consumer answering it
// must complete result.
func (e *Event) SetSearchQuery(q *SearchQuery, result *deferred.Deferred[*SearchQuery]) {
	e.stamp(KindSearchQuery)
	e.query = q
	e.result = result
}

// Seq returns the ring sequence the event was committed at.
func (e *Event) Seq() int64 { return e.seq }

// Kind returns the event kind.
func (e *Event) Kind() Kind { return e.kind }

// IsSet reports whether a setter filled the slot.
func (e *Event) IsSet() bool { return e.set }

// Committed returns when the producer committed the slot.
func (e *Event) Committed() time.Time { return e.committed }

// TSUID returns the series id for TSMeta, annotation and data point events.
func (e *Event) TSUID() string { return e.tsuid }

func (e *Event) TSMeta() *TSMeta         { return e.tsMeta }
func (e *Event) UIDMeta() *UIDMeta       { return e.uidMeta }
func (e *Event) Annotation() *Annotation { return e.annotation }
func (e *Event) DataPoint() DataPoint    { return e.point }
func (e *Event) Query() *SearchQuery     { return e.query }

// Result returns the completion handle of a search query event.
func (e *Event) Result() *deferred.Deferred[*SearchQuery] { return e.result }
