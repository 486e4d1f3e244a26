package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/cuihairu/croupier-go/message"
)

func echoHandler(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
	return &message.InvokeResponse{Success: true, Payload: req.Payload}
}

func slowHandler(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
	time.Sleep(200 * time.Millisecond)
	return &message.InvokeResponse{Success: true, Payload: req.Payload}
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware(nil)(echoHandler)

	resp := handler(context.Background(), &message.InvokeRequest{FunctionID: "player.grant_item", Payload: "ok"})
	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.Payload != "ok" {
		t.Fatalf("expect payload 'ok', got %q", resp.Payload)
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeoutMiddleware(500 * time.Millisecond)(echoHandler)

	resp := handler(context.Background(), &message.InvokeRequest{FunctionID: "player.grant_item"})
	if !resp.Success {
		t.Fatalf("expect success, got error %q", resp.Error)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeoutMiddleware(50 * time.Millisecond)(slowHandler)

	resp := handler(context.Background(), &message.InvokeRequest{FunctionID: "player.grant_item"})
	if resp.Success {
		t.Fatal("expect timeout failure")
	}
	if resp.Error != "request timed out" {
		t.Fatalf("expect timeout error, got %q", resp.Error)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1/s, burst=2: first 2 pass, third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := &message.InvokeRequest{FunctionID: "player.grant_item"}

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if !resp.Success {
			t.Fatalf("request %d should pass, got error: %s", i, resp.Error)
		}
	}

	resp := handler(context.Background(), req)
	if resp.Success {
		t.Fatal("request 3 should be rate limited")
	}
	if resp.Error != "rate limit exceeded" {
		t.Fatalf("expect rate limit error, got %q", resp.Error)
	}
}

func TestRetryRecoversTransientFailure(t *testing.T) {
	attempts := 0
	flaky := func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
		attempts++
		if attempts < 3 {
			return &message.InvokeResponse{Success: false, Error: "request timed out"}
		}
		return &message.InvokeResponse{Success: true, Payload: "recovered"}
	}

	handler := RetryMiddleware(3, time.Millisecond, nil)(flaky)
	resp := handler(context.Background(), &message.InvokeRequest{FunctionID: "player.grant_item"})
	if !resp.Success {
		t.Fatalf("expect success after retries, got %q", resp.Error)
	}
	if attempts != 3 {
		t.Fatalf("expect 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnPermanentFailure(t *testing.T) {
	attempts := 0
	failing := func(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
		attempts++
		return &message.InvokeResponse{Success: false, Error: "validation failed", Code: message.CodeInvalidPayload}
	}

	handler := RetryMiddleware(3, time.Millisecond, nil)(failing)
	resp := handler(context.Background(), &message.InvokeRequest{FunctionID: "player.grant_item"})
	if resp.Success {
		t.Fatal("expect failure")
	}
	if attempts != 1 {
		t.Fatalf("non-transient error must not be retried, got %d attempts", attempts)
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(nil), TimeoutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	resp := handler(context.Background(), &message.InvokeRequest{FunctionID: "player.grant_item", Payload: "x"})
	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if !resp.Success {
		t.Fatalf("expect success, got %q", resp.Error)
	}
}
