package encoding

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

// ProtobufEncoder encodes frames as a google.protobuf.Struct. The field names
// are the JSON names, so decoders need no generated schema.
type ProtobufEncoder struct{}

func NewProtobufEncoder() *ProtobufEncoder {
	return &ProtobufEncoder{}
}

func (e *ProtobufEncoder) Encode(frame models.Frame) ([]byte, error) {
	pb, err := frameToStruct(frame)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

func (e *ProtobufEncoder) ContentType() string {
	return "application/x-protobuf"
}

func frameToStruct(f models.Frame) (*structpb.Struct, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame fields: %w", err)
	}

	pb, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build frame struct: %w", err)
	}
	return pb, nil
}

// DecodeProtobuf reverses ProtobufEncoder.Encode
func DecodeProtobuf(data []byte) (models.Frame, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return models.Frame{}, fmt.Errorf("failed to unmarshal protobuf frame: %w", err)
	}

	raw, err := json.Marshal(pb.AsMap())
	if err != nil {
		return models.Frame{}, fmt.Errorf("failed to convert frame struct: %w", err)
	}

	var f models.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f, nil
}
