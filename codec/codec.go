// Package codec serializes the message envelopes carried in frame
// bodies. JSON is the default; CBOR is available for deployments that
// care about payload size.
package codec

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
	CodecTypeCBOR CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeCBOR {
		return &CBORCodec{}
	}
	return &JSONCodec{}
}

// ByName resolves a codec from its configuration name.
// Unknown names fall back to JSON.
func ByName(name string) Codec {
	if name == "cbor" {
		return &CBORCodec{}
	}
	return &JSONCodec{}
}
