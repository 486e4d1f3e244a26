// Package types holds the SDK-facing value types shared by the client
// and invoker façades.
package types

import "time"

// DefaultInvokeTimeout bounds an outbound call when the caller does
// not override it.
const DefaultInvokeTimeout = 30 * time.Second

// InvokeOptions are per-call overrides for an outbound invocation.
// The zero value is usable; nil is accepted everywhere options appear.
type InvokeOptions struct {
	GameID         string
	Env            string
	Timeout        time.Duration // 0 means DefaultInvokeTimeout
	IdempotencyKey string
	RequestID      string
	UserID         string
	Metadata       map[string]string
}

// TimeoutOrDefault returns the effective call timeout.
func (o *InvokeOptions) TimeoutOrDefault() time.Duration {
	if o == nil || o.Timeout <= 0 {
		return DefaultInvokeTimeout
	}
	return o.Timeout
}

// InvokeResult is the outcome of one outbound call. Constructed once
// by the invoker and never mutated afterwards.
type InvokeResult struct {
	Success   bool
	Data      string
	Error     string
	ErrorCode string
	Duration  time.Duration
}

// JobStatus enumerates the lifecycle states of remote asynchronous work.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

// Job is a snapshot of server-side asynchronous work. Only the remote
// side mutates a job; locally it is queried via GetJobStatus.
type Job struct {
	ID        string
	Status    JobStatus
	Progress  float64 // in [0.0, 1.0]
	Error     string
	Result    string
	StartTime *time.Time
	EndTime   *time.Time
}
