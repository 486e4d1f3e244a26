package client

import "time"

// CallContext is the per-invocation metadata handed to a handler. It
// is built by the dispatcher immediately before the handler runs and
// not retained afterwards. Treat it as read-only.
type CallContext struct {
	FunctionID string
	CallID     string // unique per invocation
	GameID     string
	Env        string
	UserID     string // caller user, may be empty
	Timestamp  time.Time

	IdempotencyKey string // may be empty
	CallerID       string // calling service id, may be empty
}
