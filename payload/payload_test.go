package payload

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"
)

type point struct {
	Metric string            `json:"metric"`
	Value  float64           `json:"value"`
	Tags   map[string]string `json:"tags,omitempty"`
}

func (p point) Map() map[string]any {
	tags := make(map[string]any, len(p.Tags))
	for k, v := range p.Tags {
		tags[k] = v
	}
	return map[string]any{"metric": p.Metric, "value": p.Value, "tags": tags}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "json"},
		{"json", "json"},
		{"MsgPack", "msgpack"},
		{"proto", "proto"},
		{"application/protobuf", "proto"},
		{"application/msgpack", "msgpack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Lookup(tt.name)
			if err != nil {
				t.Fatalf("Lookup(%q) failed: %v", tt.name, err)
			}
			if c.Name() != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.name, c.Name(), tt.want)
			}
		})
	}
	if _, err := Lookup("xml"); err == nil {
		t.Error("Lookup(xml) succeeded")
	}
	if diff := cmp.Diff([]string{"json", "msgpack", "proto"}, Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONUsesTags(t *testing.T) {
	data, err := JSON{}.Encode(point{Metric: "sys.cpu", Value: 1.5})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["metric"] != "sys.cpu" {
		t.Errorf("metric = %v", decoded["metric"])
	}
	if _, ok := decoded["tags"]; ok {
		t.Error("empty tags not omitted")
	}
}

func TestMsgPackStruct(t *testing.T) {
	in := point{Metric: "sys.mem", Value: 42, Tags: map[string]string{"host": "a"}}
	data, err := MsgPack{}.Encode(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var out point
	if err := (MsgPack{}).Decode(data, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// field names follow json tags
	var generic map[string]any
	if err := (MsgPack{}).Decode(data, &generic); err != nil {
		t.Fatalf("decode into map failed: %v", err)
	}
	if generic["metric"] != "sys.mem" {
		t.Errorf("generic[metric] = %v", generic["metric"])
	}
}

func TestProto(t *testing.T) {
	in := point{Metric: "sys.net", Value: 7, Tags: map[string]string{"iface": "eth0"}}
	data, err := Proto{}.Encode(in)
	if err != nil {
		t.Fatalf("encode Mapper failed: %v", err)
	}
	var out map[string]any
	if err := (Proto{}).Decode(data, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(in.Map(), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// proto messages pass through
	s, _ := structpb.NewStruct(map[string]any{"a": "b"})
	data, err = Proto{}.Encode(s)
	if err != nil {
		t.Fatalf("encode message failed: %v", err)
	}
	var back structpb.Struct
	if err := (Proto{}).Decode(data, &back); err != nil {
		t.Fatalf("decode message failed: %v", err)
	}
	if back.Fields["a"].GetStringValue() != "b" {
		t.Errorf("field a = %v", back.Fields["a"])
	}

	if _, err := (Proto{}).Encode(42); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Encode(42) error = %v, want ErrUnsupported", err)
	}
	if err := (Proto{}).Decode(data, new(int)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Decode into *int error = %v, want ErrUnsupported", err)
	}
	if _, err := (Proto{}).Encode(map[string]any{"bad": make(chan int)}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Encode(chan) error = %v, want ErrUnsupported", err)
	}
}
