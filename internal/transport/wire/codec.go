package wire

import (
	"encoding/json"
	"fmt"
)

// CodecName is the gRPC content subtype used by JSONCodec.
const CodecName = "json"

// JSONCodec carries gRPC messages as JSON, so plain Go structs can travel
// without generated protobuf types.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}

	return data, nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}

	return nil
}

func (JSONCodec) Name() string {
	return CodecName
}
