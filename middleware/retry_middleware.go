package middleware

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cuihairu/croupier-go/message"
)

// RetryMiddleware re-runs a handler whose failure looks transient
// (timeouts, refused connections), with exponential backoff. Retry
// only makes sense for idempotent handlers; guard registration
// accordingly.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if resp.Success {
					return resp
				}
				if !isTransient(resp.Error) {
					return resp
				}
				logger.Warn("retrying invocation",
					zap.String("function_id", req.FunctionID),
					zap.Int("attempt", i+1),
					zap.String("error", resp.Error))
				time.Sleep(baseDelay * time.Duration(1<<i)) // exponential backoff
				resp = next(ctx, req)
			}
			return resp
		}
	}
}

func isTransient(errMsg string) bool {
	return strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "timed out") ||
		strings.Contains(errMsg, "connection refused")
}
