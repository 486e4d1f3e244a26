// Package protocol implements the croupier binary frame format.
//
// Every message exchanged with an agent is one frame: a fixed 8-byte
// header followed by an opaque body. The underlying message socket
// preserves message boundaries, so no body-length field is needed:
// the body is simply everything after the header.
//
// Frame layout (big-endian):
//
//	0        1                 4                 8
//	┌────────┬─────────────────┬─────────────────┬───────────────┐
//	│version │  message type   │   request id    │    body ...    │
//	│  0x01  │    24 bits      │     uint32      │  len(msg) - 8  │
//	└────────┴─────────────────┴─────────────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// Version is the only wire version currently spoken.
	Version byte = 0x01
	// HeaderSize is the fixed frame header length in bytes.
	HeaderSize int = 8
)

// Frame is a decoded wire frame. Frames are built fresh per call or
// response; the creator owns the frame until it is handed to the
// transport.
type Frame struct {
	Version   byte
	Type      uint32 // 24-bit message type, see types.go
	RequestID uint32
	Body      []byte
}

// EncodeFrame serializes a frame into a single message buffer.
// A nil body yields a header-only message of exactly HeaderSize bytes.
func EncodeFrame(msgType uint32, requestID uint32, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	buf[0] = Version
	// Message type: 3 bytes, big-endian (the high byte of the uint32 is unused)
	buf[1] = byte(msgType >> 16)
	buf[2] = byte(msgType >> 8)
	buf[3] = byte(msgType)
	binary.BigEndian.PutUint32(buf[4:8], requestID)
	copy(buf[HeaderSize:], body)
	return buf
}

// DecodeFrame parses a message buffer into a Frame.
// Anything shorter than the 8-byte header is malformed.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("frame too short: %d bytes, need at least %d", len(data), HeaderSize)
	}
	return &Frame{
		Version:   data[0],
		Type:      uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]),
		RequestID: binary.BigEndian.Uint32(data[4:8]),
		Body:      data[HeaderSize:],
	}, nil
}
