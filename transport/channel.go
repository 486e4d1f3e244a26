package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cuihairu/croupier-go/codec"
	"github.com/cuihairu/croupier-go/message"
	"github.com/cuihairu/croupier-go/protocol"
)

// State is the lifecycle of a Channel or Listener.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrNotConnected is returned by Call outside the Connected state.
	ErrNotConnected = errors.New("channel: not connected")
	// ErrChannelClosed is returned by every operation after Close.
	ErrChannelClosed = errors.New("channel: closed")
)

// ChannelConfig tunes a Channel. The zero value is usable: plaintext
// TCP, 4 MiB messages, 30 s call timeout, no heartbeat.
type ChannelConfig struct {
	TLS               *tls.Config
	MaxMessageSize    int
	DialTimeout       time.Duration
	CallTimeout       time.Duration // applied when the caller's context has no deadline
	HeartbeatInterval time.Duration // 0 disables the heartbeat loop
	ServiceID         string        // identifies this process in heartbeats
	Codec             codec.Codec   // envelope codec for heartbeats, default JSON
	OnJobEvent        func(*protocol.Frame)
	Logger            *zap.Logger
}

// callResult is what a waiting caller receives from the receive loop:
// either the matched response frame or the error that broke the
// connection.
type callResult struct {
	frame *protocol.Frame
	err   error
}

// Channel is the outbound half of the transport: it owns one message
// socket to the agent and correlates concurrent calls by request id.
//
// Multiple goroutines may call concurrently over a single connection.
// Each call takes a fresh request id, registers a buffered result
// channel in the pending table, sends its frame, and waits; a single
// receive-loop goroutine reads response frames and routes each one to
// the waiter registered under its request id.
type Channel struct {
	addr string
	cfg  ChannelConfig
	log  *zap.Logger

	state   atomic.Int32
	mu      sync.Mutex // guards sock across Connect/Close
	sock    Socket
	seq     atomic.Uint32
	pending sync.Map // map[uint32]chan callResult
	hbStop  chan struct{}
}

// NewChannel creates a channel to the given agent address in the
// Disconnected state. Call Connect before Call.
func NewChannel(addr string, cfg ChannelConfig) *Channel {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Codec == nil {
		cfg.Codec = &codec.JSONCodec{}
	}
	return &Channel{
		addr: addr,
		cfg:  cfg,
		log:  cfg.Logger.Named("channel"),
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Connect dials the agent and starts the receive loop. On dial failure
// the channel stays Disconnected and may be connected again later.
func (c *Channel) Connect() error {
	if c.State() == StateClosed {
		return ErrChannelClosed
	}
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("channel: connect in state %s", c.State())
	}

	sock, err := Dial(c.addr, c.cfg.TLS, c.cfg.MaxMessageSize, c.cfg.DialTimeout)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("channel: connect to %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))

	go c.recvLoop(sock)
	if c.cfg.HeartbeatInterval > 0 {
		c.hbStop = make(chan struct{})
		go c.heartbeatLoop(c.cfg.HeartbeatInterval, c.hbStop)
	}
	c.log.Info("connected", zap.String("addr", c.addr))
	return nil
}

// Close releases the socket and moves the channel to Closed. Safe to
// call multiple times; every pending call fails with ErrChannelClosed.
func (c *Channel) Close() error {
	prev := State(c.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return nil
	}
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
	c.failAllPending(ErrChannelClosed)
	return nil
}

// Call sends a request frame and blocks for its paired response body.
// Equivalent to CallContext with a background context; the configured
// call timeout still applies.
func (c *Channel) Call(msgType uint32, body []byte) ([]byte, error) {
	return c.CallContext(context.Background(), msgType, body)
}

// CallContext is Call with cooperative cancellation. Canceling only
// abandons the local wait (the remote side still executes) and must
// not disturb other in-flight calls, so the pending entry is removed
// before returning.
func (c *Channel) CallContext(ctx context.Context, msgType uint32, body []byte) ([]byte, error) {
	switch c.State() {
	case StateConnected:
	case StateClosed:
		return nil, ErrChannelClosed
	default:
		return nil, ErrNotConnected
	}

	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return nil, ErrNotConnected
	}

	// Monotonic request id; uint32 wraparound keeps it non-negative.
	// Ids are never reused while an entry for them is pending: by the
	// time the counter wraps, call 1 is long resolved.
	reqID := c.seq.Add(1)

	// Register the waiter before sending so a fast response cannot
	// race past the pending table. Buffered so the receive loop never
	// blocks on delivery.
	resultCh := make(chan callResult, 1)
	c.pending.Store(reqID, resultCh)

	if err := sock.Send(protocol.EncodeFrame(msgType, reqID, body)); err != nil {
		c.pending.Delete(reqID)
		return nil, fmt.Errorf("channel: send %s to %s: %w", protocol.DescribeType(msgType), c.addr, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("channel: call %s to %s: %w", protocol.DescribeType(msgType), c.addr, res.err)
		}
		want := protocol.ResponseTypeFor(msgType)
		if res.frame.Type != want {
			return nil, fmt.Errorf("channel: unexpected response type %s for %s, want %s",
				protocol.DescribeType(res.frame.Type), protocol.DescribeType(msgType), protocol.DescribeType(want))
		}
		return res.frame.Body, nil
	case <-ctx.Done():
		c.pending.Delete(reqID)
		return nil, fmt.Errorf("channel: call %s to %s: %w", protocol.DescribeType(msgType), c.addr, ctx.Err())
	}
}

// recvLoop is the single reader for the connection. It routes each
// response frame to the waiter registered under its request id;
// responses nobody is waiting for are logged and dropped rather than
// delivered to the wrong caller.
func (c *Channel) recvLoop(sock Socket) {
	for {
		msg, err := sock.Recv()
		if err != nil {
			// Connection broken: wake every pending caller.
			if c.State() != StateClosed {
				c.state.Store(int32(StateDisconnected))
				c.log.Warn("receive loop terminated", zap.String("addr", c.addr), zap.Error(err))
			}
			c.failAllPending(err)
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			c.log.Warn("dropping malformed frame", zap.String("addr", c.addr), zap.Error(err))
			continue
		}

		if frame.Type == protocol.TypeJobEvent {
			if c.cfg.OnJobEvent != nil {
				c.cfg.OnJobEvent(frame)
			}
			continue
		}

		if ch, ok := c.pending.LoadAndDelete(frame.RequestID); ok {
			ch.(chan callResult) <- callResult{frame: frame}
		} else {
			c.log.Warn("response with no pending call",
				zap.Uint32("request_id", frame.RequestID),
				zap.String("type", protocol.DescribeType(frame.Type)))
		}
	}
}

func (c *Channel) failAllPending(err error) {
	c.pending.Range(func(key, value any) bool {
		c.pending.Delete(key)
		value.(chan callResult) <- callResult{err: err}
		return true
	})
}

// heartbeatLoop keeps the connection warm with periodic
// ClientHeartbeat round trips. Failures are logged, not fatal; the
// receive loop notices an actually broken connection.
func (c *Channel) heartbeatLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.State() != StateConnected {
				return
			}
			body, err := c.cfg.Codec.Encode(&message.HeartbeatRequest{ServiceID: c.cfg.ServiceID, Status: "ok"})
			if err != nil {
				c.log.Warn("heartbeat encode failed", zap.Error(err))
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_, err = c.CallContext(ctx, protocol.TypeClientHeartbeatRequest, body)
			cancel()
			if err != nil {
				c.log.Warn("heartbeat failed", zap.String("addr", c.addr), zap.Error(err))
			}
		}
	}
}
