// Package middleware wraps the inbound invoke dispatch path with
// cross-cutting behavior: logging, timeout, rate limiting, retry.
package middleware

import (
	"context"

	"github.com/cuihairu/croupier-go/message"
)

// HandlerFunc processes one inbound invoke envelope and always returns
// a response envelope, structured error included.
type HandlerFunc func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one. Chain(A, B, C)(handler) wraps
// as A(B(C(handler))): A sees the request first and the response last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
