// Package payload encodes sink records for the wire.
//
// Sinks pick a codec by name from configuration ("json", "msgpack",
// "proto") or by MIME type. Every codec accepts a plain
// map[string]any or a value implementing Mapper, so a sink can hand the
// same record to any of them:
//
//	codec, err := payload.Lookup(host.Get("tsd.dispatch.nats.codec", "json"))
//	if err != nil {
//	    return nil, err
//	}
//	data, err := codec.Encode(record)
package payload

import "errors"

// ErrUnsupported is returned when a codec cannot handle a value.
var ErrUnsupported = errors.New("payload: unsupported value")

// Codec encodes and decodes payloads. Implementations must be safe for
// concurrent use.
type Codec interface {
	// Name is the short configuration name, e.g. "json".
	Name() string

	Encode(v any) ([]byte, error)

	// Decode fills v, which must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type, e.g. "application/json".
	ContentType() string
}

// Mapper is implemented by values that can present themselves as a
// generic map, used by codecs that need a schema-less form.
type Mapper interface {
	Map() map[string]any
}

// Default returns the JSON codec.
func Default() Codec {
	return JSON{}
}
