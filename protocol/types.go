package protocol

import "fmt"

// Message types are 24-bit identifiers partitioned by service area via
// the high byte. Requests are odd, responses even, and a response type
// is always its request type + 1. TypeJobEvent is the one reserved
// one-way type: it is neither a request nor a response.
const (
	AreaControl byte = 0x01
	AreaClient  byte = 0x02
	AreaInvoker byte = 0x03
	AreaLocal   byte = 0x04
)

const (
	TypeControlRegisterRequest   uint32 = 0x010101
	TypeControlRegisterResponse  uint32 = 0x010102
	TypeControlHeartbeatRequest  uint32 = 0x010103
	TypeControlHeartbeatResponse uint32 = 0x010104

	TypeClientRegisterRequest   uint32 = 0x020101
	TypeClientRegisterResponse  uint32 = 0x020102
	TypeClientHeartbeatRequest  uint32 = 0x020103
	TypeClientHeartbeatResponse uint32 = 0x020104

	TypeInvokeRequest     uint32 = 0x030101
	TypeInvokeResponse    uint32 = 0x030102
	TypeStartJobRequest   uint32 = 0x030103
	TypeStartJobResponse  uint32 = 0x030104
	TypeStreamJobRequest  uint32 = 0x030105
	TypeStreamJobResponse uint32 = 0x030106
	TypeJobEvent          uint32 = 0x030107
	TypeCancelJobRequest  uint32 = 0x030109
	TypeCancelJobResponse uint32 = 0x03010A

	TypeLocalRegisterRequest   uint32 = 0x040101
	TypeLocalRegisterResponse  uint32 = 0x040102
	TypeLocalHeartbeatRequest  uint32 = 0x040103
	TypeLocalHeartbeatResponse uint32 = 0x040104
	TypeLocalListRequest       uint32 = 0x040105
	TypeLocalListResponse      uint32 = 0x040106
)

// typeNames covers every catalogued type, for diagnostics.
var typeNames = map[uint32]string{
	TypeControlRegisterRequest:   "ControlRegisterRequest",
	TypeControlRegisterResponse:  "ControlRegisterResponse",
	TypeControlHeartbeatRequest:  "ControlHeartbeatRequest",
	TypeControlHeartbeatResponse: "ControlHeartbeatResponse",
	TypeClientRegisterRequest:    "ClientRegisterRequest",
	TypeClientRegisterResponse:   "ClientRegisterResponse",
	TypeClientHeartbeatRequest:   "ClientHeartbeatRequest",
	TypeClientHeartbeatResponse:  "ClientHeartbeatResponse",
	TypeInvokeRequest:            "InvokeRequest",
	TypeInvokeResponse:           "InvokeResponse",
	TypeStartJobRequest:          "StartJobRequest",
	TypeStartJobResponse:         "StartJobResponse",
	TypeStreamJobRequest:         "StreamJobRequest",
	TypeStreamJobResponse:        "StreamJobResponse",
	TypeJobEvent:                 "JobEvent",
	TypeCancelJobRequest:         "CancelJobRequest",
	TypeCancelJobResponse:        "CancelJobResponse",
	TypeLocalRegisterRequest:     "LocalRegisterRequest",
	TypeLocalRegisterResponse:    "LocalRegisterResponse",
	TypeLocalHeartbeatRequest:    "LocalHeartbeatRequest",
	TypeLocalHeartbeatResponse:   "LocalHeartbeatResponse",
	TypeLocalListRequest:         "LocalListRequest",
	TypeLocalListResponse:        "LocalListResponse",
}

// responseTypes maps each catalogued request type to its paired
// response type. The pairing is request+1 by convention, but keeping
// it as an explicit table makes the invariant checkable and keeps the
// one-way TypeJobEvent out of the pairing entirely.
var responseTypes = map[uint32]uint32{
	TypeControlRegisterRequest:  TypeControlRegisterResponse,
	TypeControlHeartbeatRequest: TypeControlHeartbeatResponse,
	TypeClientRegisterRequest:   TypeClientRegisterResponse,
	TypeClientHeartbeatRequest:  TypeClientHeartbeatResponse,
	TypeInvokeRequest:           TypeInvokeResponse,
	TypeStartJobRequest:         TypeStartJobResponse,
	TypeStreamJobRequest:        TypeStreamJobResponse,
	TypeCancelJobRequest:        TypeCancelJobResponse,
	TypeLocalRegisterRequest:    TypeLocalRegisterResponse,
	TypeLocalHeartbeatRequest:   TypeLocalHeartbeatResponse,
	TypeLocalListRequest:        TypeLocalListResponse,
}

// IsRequest reports whether msgType names a request. Requests carry an
// odd identifier; the reserved JobEvent type is excluded even though
// its identifier is odd.
func IsRequest(msgType uint32) bool {
	return msgType%2 == 1 && msgType != TypeJobEvent
}

// IsResponse reports whether msgType names a response.
func IsResponse(msgType uint32) bool {
	return msgType%2 == 0 && msgType != TypeJobEvent
}

// ResponseTypeFor returns the response type paired with a request
// type. Callers must not pass non-request types; for request types
// outside the catalog it falls back to the request+1 convention.
func ResponseTypeFor(requestType uint32) uint32 {
	if resp, ok := responseTypes[requestType]; ok {
		return resp
	}
	return requestType + 1
}

// DescribeType returns a human-readable name for a message type, or a
// deterministic placeholder for types outside the catalog. Diagnostics
// only, never used for dispatch.
func DescribeType(msgType uint32) string {
	if name, ok := typeNames[msgType]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%06X)", msgType)
}
