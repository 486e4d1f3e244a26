package codec

import (
	"encoding/json"
)

// JSONCodec is the default envelope codec: human-readable on the wire
// and easy to inspect while debugging, at the cost of repeating field
// names in every payload.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
