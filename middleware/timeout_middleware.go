package middleware

import (
	"context"
	"time"

	"github.com/cuihairu/croupier-go/message"
)

// TimeoutMiddleware bounds handler execution. The handler keeps
// running in its goroutine after the deadline (Go cannot kill it), but
// the caller gets a structured timeout response instead of waiting.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.InvokeResponse, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return &message.InvokeResponse{
					Success: false,
					Error:   "request timed out",
					Code:    message.CodeInternal,
				}
			}
		}
	}
}
