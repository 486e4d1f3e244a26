package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cuihairu/croupier-go/message"
)

// LoggingMiddleware logs every dispatched invocation with its function
// id, outcome, and elapsed time.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("function_id", req.FunctionID),
				zap.Duration("duration", time.Since(start)),
				zap.Bool("success", resp.Success),
			}
			if !resp.Success {
				fields = append(fields, zap.String("error", resp.Error), zap.String("code", resp.Code))
				logger.Warn("invoke failed", fields...)
				return resp
			}
			logger.Info("invoke handled", fields...)
			return resp
		}
	}
}
