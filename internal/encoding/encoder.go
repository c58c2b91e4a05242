package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

// Format represents the encoding format
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// ParseFormat validates a format name from configuration
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatProtobuf:
		return FormatProtobuf, nil
	default:
		return "", fmt.Errorf("unsupported encoding: %q (supported: json, protobuf)", s)
	}
}

// Encoder encodes frames to bytes
type Encoder interface {
	Encode(frame models.Frame) ([]byte, error)
	ContentType() string
}

// JSONEncoder encodes frames as JSON
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Encode(frame models.Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

// NewEncoder creates an encoder for the given format
func NewEncoder(format Format) Encoder {
	switch format {
	case FormatProtobuf:
		return NewProtobufEncoder()
	default:
		return NewJSONEncoder()
	}
}
