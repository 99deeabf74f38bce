package payload

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto encodes proto.Message values directly. Maps and Mappers are sent
// as a google.protobuf.Struct and decode back into *map[string]any.
type Proto struct{}

func (Proto) Name() string        { return "proto" }
func (Proto) ContentType() string { return "application/protobuf" }

func (Proto) Encode(v any) ([]byte, error) {
	switch m := v.(type) {
	case proto.Message:
		return proto.Marshal(m)
	case map[string]any:
		return marshalStruct(m)
	case Mapper:
		return marshalStruct(m.Map())
	default:
		return nil, fmt.Errorf("%w: proto cannot encode %T", ErrUnsupported, v)
	}
}

func (Proto) Decode(data []byte, v any) error {
	switch m := v.(type) {
	case proto.Message:
		return proto.Unmarshal(data, m)
	case *map[string]any:
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = s.AsMap()
		return nil
	default:
		return fmt.Errorf("%w: proto cannot decode into %T", ErrUnsupported, v)
	}
}

func marshalStruct(m map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return proto.Marshal(s)
}

var _ Codec = Proto{}
