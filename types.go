package tsdispatch

import "strconv"

// Payload types carried by events. They mirror the host's metadata,
// annotation and data point records; the engine never inspects them.

// TSMeta is time series metadata.
type TSMeta struct {
	TSUID       string            `json:"tsuid" bson:"_id"`
	Metric      string            `json:"metric" bson:"metric"`
	Tags        map[string]string `json:"tags,omitempty" bson:"tags,omitempty"`
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	Created     int64             `json:"created" bson:"created"`
	Custom      map[string]string `json:"custom,omitempty" bson:"custom,omitempty"`
}

// UIDMeta is metadata for a metric, tag key or tag value UID.
type UIDMeta struct {
	UID         string            `json:"uid" bson:"uid"`
	Type        string            `json:"type" bson:"type"`
	Name        string            `json:"name" bson:"name"`
	DisplayName string            `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	Custom      map[string]string `json:"custom,omitempty" bson:"custom,omitempty"`
}

// Key returns the identity of the UID across types.
func (m *UIDMeta) Key() string {
	return m.Type + ":" + m.UID
}

// Annotation is a note attached to a series, or global when TSUID is empty.
type Annotation struct {
	TSUID       string            `json:"tsuid,omitempty" bson:"tsuid,omitempty"`
	StartTime   int64             `json:"startTime" bson:"startTime"`
	EndTime     int64             `json:"endTime,omitempty" bson:"endTime,omitempty"`
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	Notes       string            `json:"notes,omitempty" bson:"notes,omitempty"`
	Custom      map[string]string `json:"custom,omitempty" bson:"custom,omitempty"`
}

// Key returns the identity of the annotation.
func (a *Annotation) Key() string {
	return a.TSUID + "@" + strconv.FormatInt(a.StartTime, 10)
}

// DataPoint is one published value. Long holds the value unless IsDouble.
type DataPoint struct {
	Metric    string
	Timestamp int64
	Long      int64
	Double    float64
	IsDouble  bool
	Tags      map[string]string
	TSUID     string
}

// Value returns the point as a float64.
func (p DataPoint) Value() float64 {
	if p.IsDouble {
		return p.Double
	}
	return float64(p.Long)
}

// SearchType selects what a query searches.
type SearchType string

const (
	SearchTSMeta        SearchType = "TSMETA"
	SearchTSMetaSummary SearchType = "TSMETA_SUMMARY"
	SearchTSUIDs        SearchType = "TSUIDS"
	SearchUIDMeta       SearchType = "UIDMETA"
	SearchAnnotation    SearchType = "ANNOTATION"
)

// SearchQuery is both the request and, once answered, the response.
// Results holds *TSMeta, string, *UIDMeta or *Annotation values depending
// on Type. Time is the execution time in milliseconds.
type SearchQuery struct {
	Type         SearchType
	Query        string
	Limit        int
	StartIndex   int
	Results      []any
	TotalResults int
	Time         float64
}
