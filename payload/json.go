package payload

import "encoding/json"

// JSON is the default codec.
type JSON struct{}

func (JSON) Name() string        { return "json" }
func (JSON) ContentType() string { return "application/json" }

func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

var _ Codec = JSON{}
