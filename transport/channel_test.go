package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuihairu/croupier-go/protocol"
)

// echoListener answers every request with its own body wrapped in the
// paired response type.
func echoListener(t *testing.T) *Listener {
	t.Helper()
	l := NewListener("127.0.0.1:0", func(ctx context.Context, req *protocol.Frame) (uint32, []byte) {
		return protocol.ResponseTypeFor(req.Type), req.Body
	}, ListenerConfig{})
	if err := l.Listen(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Stop() })
	return l
}

func connectedChannel(t *testing.T, addr string, cfg ChannelConfig) *Channel {
	t.Helper()
	ch := NewChannel(addr, cfg)
	if err := ch.Connect(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestChannelCallEcho(t *testing.T) {
	l := echoListener(t)
	ch := connectedChannel(t, l.Addr(), ChannelConfig{})

	payload := []byte(`{"test":"data"}`)
	body, err := ch.Call(protocol.TypeInvokeRequest, payload)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("expect %s, got %s", payload, body)
	}
}

func TestChannelConcurrentCalls(t *testing.T) {
	l := echoListener(t)
	ch := connectedChannel(t, l.Addr(), ChannelConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("payload-%d", n))
			body, err := ch.Call(protocol.TypeInvokeRequest, payload)
			if err != nil {
				t.Errorf("call %d failed: %v", n, err)
				return
			}
			if !bytes.Equal(body, payload) {
				t.Errorf("call %d: expect %s, got %s", n, payload, body)
			}
		}(i)
	}
	wg.Wait()
}

func TestChannelCallNotConnected(t *testing.T) {
	ch := NewChannel("127.0.0.1:1", ChannelConfig{})
	_, err := ch.Call(protocol.TypeInvokeRequest, nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expect ErrNotConnected, got %v", err)
	}
}

func TestChannelConnectFailureStaysDisconnected(t *testing.T) {
	// Port 1 is never listening.
	ch := NewChannel("127.0.0.1:1", ChannelConfig{DialTimeout: 200 * time.Millisecond})
	if err := ch.Connect(); err == nil {
		t.Fatal("expect connect error")
	}
	if got := ch.State(); got != StateDisconnected {
		t.Fatalf("expect state disconnected after failed connect, got %s", got)
	}
}

func TestChannelCloseIdempotent(t *testing.T) {
	l := echoListener(t)
	ch := connectedChannel(t, l.Addr(), ChannelConfig{})

	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close must not fail: %v", err)
	}
	if _, err := ch.Call(protocol.TypeInvokeRequest, nil); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expect ErrChannelClosed after Close, got %v", err)
	}
}

func TestChannelCancellation(t *testing.T) {
	// Slow handler: the first call is canceled mid-wait, the second
	// must still complete; cancellation must not corrupt the pending
	// table or the request-id accounting.
	l := NewListener("127.0.0.1:0", func(ctx context.Context, req *protocol.Frame) (uint32, []byte) {
		if bytes.Equal(req.Body, []byte("slow")) {
			time.Sleep(300 * time.Millisecond)
		}
		return protocol.ResponseTypeFor(req.Type), req.Body
	}, ListenerConfig{})
	if err := l.Listen(); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	ch := connectedChannel(t, l.Addr(), ChannelConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := ch.CallContext(ctx, protocol.TypeInvokeRequest, []byte("slow"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect context.Canceled, got %v", err)
	}

	body, err := ch.Call(protocol.TypeInvokeRequest, []byte("fast"))
	if err != nil {
		t.Fatalf("call after cancellation failed: %v", err)
	}
	if !bytes.Equal(body, []byte("fast")) {
		t.Fatalf("expect fast, got %s", body)
	}
}

func TestChannelWrongResponseType(t *testing.T) {
	l := NewListener("127.0.0.1:0", func(ctx context.Context, req *protocol.Frame) (uint32, []byte) {
		return protocol.TypeStartJobResponse, req.Body // wrong pairing for InvokeRequest
	}, ListenerConfig{})
	if err := l.Listen(); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	ch := connectedChannel(t, l.Addr(), ChannelConfig{})

	_, err := ch.Call(protocol.TypeInvokeRequest, []byte("x"))
	if err == nil {
		t.Fatal("expect error for mismatched response type")
	}
}

func TestChannelPool(t *testing.T) {
	l := echoListener(t)

	pool := NewChannelPool(l.Addr(), 2, func(addr string) (*Channel, error) {
		ch := NewChannel(addr, ChannelConfig{})
		if err := ch.Connect(); err != nil {
			return nil, err
		}
		return ch, nil
	})
	defer pool.Close()

	ch1, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	ch2, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(ch1)
	pool.Put(ch2)

	ch3, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ch3.Call(protocol.TypeInvokeRequest, []byte("pooled")); err != nil {
		t.Fatalf("call on pooled channel failed: %v", err)
	}
	pool.Put(ch3)
}
