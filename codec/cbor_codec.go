package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBORCodec uses CBOR (RFC 8949) for envelope serialization.
// Smaller payloads than JSON and no field-name repetition, at the cost
// of not being human-readable on the wire.
type CBORCodec struct{}

func (c *CBORCodec) Encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c *CBORCodec) Decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func (c *CBORCodec) Type() CodecType {
	return CodecTypeCBOR
}
