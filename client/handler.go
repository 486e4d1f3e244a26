package client

import (
	"context"
	"fmt"
)

// Handler is the capability behind every registered function:
// transform (context, payload) into a payload or fail with an error.
// This is the one canonical form; the adapters below fold the other
// callback shapes into it at the registration boundary.
type Handler interface {
	Invoke(ctx context.Context, call *CallContext, payload string) (string, error)
}

// HandlerFunc adapts an ordinary function to the Handler capability.
type HandlerFunc func(ctx context.Context, call *CallContext, payload string) (string, error)

func (f HandlerFunc) Invoke(ctx context.Context, call *CallContext, payload string) (string, error) {
	return f(ctx, call, payload)
}

// SafeFunc adapts a plain synchronous callback that may panic: the
// panic is captured and turned into a failed outcome instead of
// crossing the dispatch boundary.
func SafeFunc(fn func(call *CallContext, payload string) (string, error)) Handler {
	return HandlerFunc(func(ctx context.Context, call *CallContext, payload string) (result string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return fn(call, payload)
	})
}
