// Package sink holds what the concrete consumers share: the wire record
// built from an event, codec selection and naming helpers.
//
// Each sub-package registers a consumer factory in init, so importing it
// for side effects makes the name usable in the consumers configuration
// key:
//
//	import _ "github.com/rbaliyan/tsdispatch/sink/nats"
//
//	host := tsdispatch.MapHost{
//	    tsdispatch.KeyConsumers:      "nats",
//	    "tsd.dispatch.nats.url":      "nats://localhost:4222",
//	    "tsd.dispatch.nats.codec":    "msgpack",
//	}
package sink

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/payload"
)

// KeyPrefix starts every sink configuration key.
const KeyPrefix = "tsd.dispatch."

// Key returns the configuration key for a sink setting, e.g. Key("nats", "url").
func Key(sink, setting string) string {
	return KeyPrefix + sink + "." + setting
}

// Record is the wire form of an event. Only the fields relevant to the
// kind are set.
type Record struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Seq         int64             `json:"seq"`
	TSUID       string            `json:"tsuid,omitempty"`
	Metric      string            `json:"metric,omitempty"`
	Timestamp   int64             `json:"timestamp,omitempty"`
	Value       any               `json:"value,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	StartTime   int64             `json:"start_time,omitempty"`
	EndTime     int64             `json:"end_time,omitempty"`
	Description string            `json:"description,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// FromEvent copies the publishable fields of ev. Value is int64 for
// DPOINT_LONG and float64 for DPOINT_DOUBLE.
func FromEvent(ev *tsdispatch.Event) Record {
	r := Record{
		ID:    uuid.NewString(),
		Kind:  ev.Kind().String(),
		Seq:   ev.Seq(),
		TSUID: ev.TSUID(),
	}
	switch ev.Kind() {
	case tsdispatch.KindDataPointLong, tsdispatch.KindDataPointDouble:
		p := ev.DataPoint()
		r.Metric = p.Metric
		r.Timestamp = p.Timestamp
		r.Tags = p.Tags
		if p.IsDouble {
			r.Value = p.Double
		} else {
			r.Value = p.Long
		}
	case tsdispatch.KindTSMetaIndex:
		if m := ev.TSMeta(); m != nil {
			r.Metric = m.Metric
			r.Tags = m.Tags
			r.Description = m.Description
			r.Custom = m.Custom
		}
	default:
		if a := ev.Annotation(); a != nil {
			r.StartTime = a.StartTime
			r.EndTime = a.EndTime
			r.Description = a.Description
			r.Notes = a.Notes
			r.Custom = a.Custom
		}
	}
	return r
}

// Map implements payload.Mapper.
func (r Record) Map() map[string]any {
	m := map[string]any{
		"id":   r.ID,
		"kind": r.Kind,
		"seq":  r.Seq,
	}
	set := func(k string, v any, ok bool) {
		if ok {
			m[k] = v
		}
	}
	set("tsuid", r.TSUID, r.TSUID != "")
	set("metric", r.Metric, r.Metric != "")
	set("timestamp", r.Timestamp, r.Timestamp != 0)
	set("value", r.Value, r.Value != nil)
	set("tags", stringMap(r.Tags), len(r.Tags) > 0)
	set("start_time", r.StartTime, r.StartTime != 0)
	set("end_time", r.EndTime, r.EndTime != 0)
	set("description", r.Description, r.Description != "")
	set("notes", r.Notes, r.Notes != "")
	set("custom", stringMap(r.Custom), len(r.Custom) > 0)
	return m
}

func stringMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ payload.Mapper = Record{}

// Codec returns the codec named by the host's "<sink>.codec" key, JSON by default.
func Codec(host tsdispatch.Host, sink string) (payload.Codec, error) {
	c, err := payload.Lookup(tsdispatch.Lookup(host, Key(sink, "codec"), "json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sink, err)
	}
	return c, nil
}

// Mask reads the host's "<sink>.kinds" key, a comma separated list of kind
// names, falling back to def.
func Mask(host tsdispatch.Host, sink string, def tsdispatch.Mask) (tsdispatch.Mask, error) {
	raw := tsdispatch.Lookup(host, Key(sink, "kinds"), "")
	if raw == "" {
		return def, nil
	}
	var m tsdispatch.Mask
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		k, err := tsdispatch.KindByName(name)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", sink, err)
		}
		m |= k.Flag()
	}
	return m, nil
}

// Topic names the destination for kind k under prefix, e.g. "tsd.dpoint_long".
func Topic(prefix, sep string, k tsdispatch.Kind) string {
	name := strings.ToLower(k.String())
	if prefix == "" {
		return name
	}
	return prefix + sep + name
}

// Logger returns a child logger for a sink.
func Logger(sink string) *slog.Logger {
	return slog.Default().With("component", "sink>"+sink)
}
