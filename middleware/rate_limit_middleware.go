package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/cuihairu/croupier-go/message"
)

// RateLimitMiddleware rejects invocations beyond r per second with a
// burst allowance, using a token bucket shared across all functions.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
			if !limiter.Allow() {
				return &message.InvokeResponse{
					Success: false,
					Error:   "rate limit exceeded",
					Code:    message.CodeInternal,
				}
			}
			return next(ctx, req)
		}
	}
}
