// Package message defines the envelopes carried in frame bodies.
//
// Each envelope is serialized by the codec package and wrapped in a
// protocol frame for transmission. Field tags cover both JSON (the
// default codec) and CBOR.
package message

// Error codes carried in response envelopes. Callers use these to
// distinguish "the remote said no" from local conditions.
const (
	CodeFunctionNotFound = "FUNCTION_NOT_FOUND"
	CodeHandlerError     = "HANDLER_ERROR"
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeInternal         = "INTERNAL"
	CodeCanceled         = "CANCELED"
)

// InvokeRequest asks the receiving side to execute one registered
// function. FunctionID is the full dotted name (category.id).
type InvokeRequest struct {
	FunctionID     string            `json:"function_id" cbor:"1,keyasint"`
	Payload        string            `json:"payload,omitempty" cbor:"2,keyasint,omitempty"`
	GameID         string            `json:"game_id,omitempty" cbor:"3,keyasint,omitempty"`
	Env            string            `json:"env,omitempty" cbor:"4,keyasint,omitempty"`
	UserID         string            `json:"user_id,omitempty" cbor:"5,keyasint,omitempty"`
	CallerID       string            `json:"caller_id,omitempty" cbor:"6,keyasint,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty" cbor:"7,keyasint,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty" cbor:"8,keyasint,omitempty"`
}

// InvokeResponse carries a function result or a structured error.
// Exactly one of Payload (Success=true) or Error/Code (Success=false)
// is meaningful; the dispatch loop always answers with one of the
// two, even when the handler panics.
type InvokeResponse struct {
	Success bool   `json:"success" cbor:"1,keyasint"`
	Payload string `json:"payload,omitempty" cbor:"2,keyasint,omitempty"`
	Error   string `json:"error,omitempty" cbor:"3,keyasint,omitempty"`
	Code    string `json:"code,omitempty" cbor:"4,keyasint,omitempty"`
}

// StartJobRequest begins long-running asynchronous work on the remote
// side. The reply carries only the job id; progress is polled.
type StartJobRequest struct {
	FunctionID string `json:"function_id" cbor:"1,keyasint"`
	Payload    string `json:"payload,omitempty" cbor:"2,keyasint,omitempty"`
	GameID     string `json:"game_id,omitempty" cbor:"3,keyasint,omitempty"`
	Env        string `json:"env,omitempty" cbor:"4,keyasint,omitempty"`
}

type StartJobResponse struct {
	Success bool   `json:"success" cbor:"1,keyasint"`
	JobID   string `json:"job_id,omitempty" cbor:"2,keyasint,omitempty"`
	Error   string `json:"error,omitempty" cbor:"3,keyasint,omitempty"`
}

type CancelJobRequest struct {
	JobID string `json:"job_id" cbor:"1,keyasint"`
}

// CancelJobResponse: Accepted=true means the remote agreed to cancel;
// the job may still run to completion if cancellation lost the race.
type CancelJobResponse struct {
	Accepted bool   `json:"accepted" cbor:"1,keyasint"`
	Message  string `json:"message,omitempty" cbor:"2,keyasint,omitempty"`
}

type JobStatusRequest struct {
	JobID string `json:"job_id" cbor:"1,keyasint"`
}

// JobStatusResponse is a point-in-time snapshot. Found=false means the
// remote does not know the job id.
type JobStatusResponse struct {
	Found     bool    `json:"found" cbor:"1,keyasint"`
	JobID     string  `json:"job_id,omitempty" cbor:"2,keyasint,omitempty"`
	Status    string  `json:"status,omitempty" cbor:"3,keyasint,omitempty"`
	Progress  float64 `json:"progress,omitempty" cbor:"4,keyasint,omitempty"`
	Error     string  `json:"error,omitempty" cbor:"5,keyasint,omitempty"`
	Result    string  `json:"result,omitempty" cbor:"6,keyasint,omitempty"`
	StartTime int64   `json:"start_time,omitempty" cbor:"7,keyasint,omitempty"` // Unix milliseconds
	EndTime   int64   `json:"end_time,omitempty" cbor:"8,keyasint,omitempty"`   // Unix milliseconds, 0 while running
}

// RegisterRequest announces a serving client to its agent: who it is,
// which tenant it serves, and how many functions it exposes.
type RegisterRequest struct {
	ServiceID string            `json:"service_id" cbor:"1,keyasint"`
	GameID    string            `json:"game_id,omitempty" cbor:"2,keyasint,omitempty"`
	Env       string            `json:"env,omitempty" cbor:"3,keyasint,omitempty"`
	Addr      string            `json:"addr,omitempty" cbor:"4,keyasint,omitempty"`
	Functions int               `json:"functions" cbor:"5,keyasint"`
	Metadata  map[string]string `json:"metadata,omitempty" cbor:"6,keyasint,omitempty"`
}

type RegisterResponse struct {
	Success bool   `json:"success" cbor:"1,keyasint"`
	Message string `json:"message,omitempty" cbor:"2,keyasint,omitempty"`
}

type HeartbeatRequest struct {
	ServiceID string `json:"service_id" cbor:"1,keyasint"`
	Functions int    `json:"functions" cbor:"2,keyasint"`
	Status    string `json:"status,omitempty" cbor:"3,keyasint,omitempty"`
}

type HeartbeatResponse struct {
	Success       bool  `json:"success" cbor:"1,keyasint"`
	NextHeartbeat int64 `json:"next_heartbeat,omitempty" cbor:"2,keyasint,omitempty"` // Unix milliseconds
}
