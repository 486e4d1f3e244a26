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

// ListenerState is the lifecycle of a Listener.
type ListenerState int32

const (
	ListenerIdle ListenerState = iota
	ListenerListening
	ListenerStopped
)

// ErrListenerStopped is returned by Listen after Stop.
var ErrListenerStopped = errors.New("listener: stopped")

// RequestHandler produces the response for one inbound request frame.
// It returns the response message type and body; the listener pairs
// them with the request id and transmits the frame. Panics are
// recovered by the dispatch loop and answered with a structured error
// response.
type RequestHandler func(ctx context.Context, req *protocol.Frame) (respType uint32, respBody []byte)

// ListenerConfig tunes a Listener. The zero value is usable.
type ListenerConfig struct {
	TLS            *tls.Config
	MaxMessageSize int
	// MaxConcurrent bounds in-flight handler goroutines across all
	// connections. 0 means 64.
	MaxConcurrent int
	// StopTimeout bounds how long Stop waits for in-flight work. 0
	// means 5 s.
	StopTimeout time.Duration
	Codec       codec.Codec // envelope codec for best-effort error responses
	Logger      *zap.Logger
}

// Listener is the inbound half of the transport. It binds a passive
// endpoint, reads one frame at a time per connection, raises each
// request to the registered handler on its own goroutine, and writes
// the handler's response back over the same socket.
type Listener struct {
	addr    string
	cfg     ListenerConfig
	log     *zap.Logger
	handler RequestHandler

	state atomic.Int32
	ln    SocketListener
	conns sync.Map      // open sockets, closed on Stop
	sem   chan struct{} // bounds concurrent handler executions
	quit  chan struct{}
	wg    sync.WaitGroup
}

// NewListener creates an idle listener for the given bind address.
func NewListener(addr string, handler RequestHandler, cfg ListenerConfig) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 64
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.Codec == nil {
		cfg.Codec = &codec.JSONCodec{}
	}
	return &Listener{
		addr:    addr,
		cfg:     cfg,
		log:     cfg.Logger.Named("listener"),
		handler: handler,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() string {
	if l.ln != nil {
		return l.ln.Addr()
	}
	return l.addr
}

// Listen binds the endpoint and starts the accept loop in the
// background. Calling it while already listening is a no-op.
func (l *Listener) Listen() error {
	if l.State() == ListenerStopped {
		return ErrListenerStopped
	}
	if !l.state.CompareAndSwap(int32(ListenerIdle), int32(ListenerListening)) {
		return nil // already listening
	}

	ln, err := Listen(l.addr, l.cfg.TLS, l.cfg.MaxMessageSize)
	if err != nil {
		l.state.Store(int32(ListenerIdle))
		return fmt.Errorf("listener: bind %s: %w", l.addr, err)
	}
	l.ln = ln
	l.quit = make(chan struct{})

	l.wg.Add(1)
	go l.acceptLoop()
	l.log.Info("listening", zap.String("addr", ln.Addr()))
	return nil
}

// Stop signals the loops to exit, closes the endpoint, and waits a
// bounded time for in-flight work. Idempotent.
func (l *Listener) Stop() error {
	prev := ListenerState(l.state.Swap(int32(ListenerStopped)))
	if prev != ListenerListening {
		return nil
	}
	close(l.quit)
	l.ln.Close()
	l.conns.Range(func(key, _ any) bool {
		key.(Socket).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(l.cfg.StopTimeout):
		return fmt.Errorf("listener: timeout waiting for in-flight requests")
	}
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		sock, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.quit:
				return // intentional close
			default:
				l.log.Warn("accept failed", zap.Error(err))
				return
			}
		}
		l.conns.Store(sock, struct{}{})
		l.wg.Add(1)
		go l.serveConn(sock)
	}
}

// serveConn reads frames sequentially from one connection and hands
// each request off to its own goroutine so a slow handler does not
// stall the next frame. A per-connection write mutex keeps response
// messages from interleaving.
func (l *Listener) serveConn(sock Socket) {
	defer l.wg.Done()
	defer sock.Close()
	defer l.conns.Delete(sock)

	writeMu := &sync.Mutex{}
	for {
		msg, err := sock.Recv()
		if err != nil {
			select {
			case <-l.quit:
			default:
				l.log.Debug("connection closed", zap.String("peer", sock.RemoteAddr()), zap.Error(err))
			}
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			// Malformed frames are skipped, never fatal to the loop.
			l.log.Warn("skipping malformed frame", zap.String("peer", sock.RemoteAddr()), zap.Error(err))
			continue
		}

		l.sem <- struct{}{}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() { <-l.sem }()
			l.dispatch(sock, writeMu, frame)
		}()
	}
}

// dispatch runs the handler for one frame and always answers, even
// when the handler panics: the peer must never be left waiting on a
// request that died server-side.
func (l *Listener) dispatch(sock Socket, writeMu *sync.Mutex, frame *protocol.Frame) {
	respType, respBody := l.safeHandle(frame)

	writeMu.Lock()
	err := sock.Send(protocol.EncodeFrame(respType, frame.RequestID, respBody))
	writeMu.Unlock()
	if err != nil {
		l.log.Warn("failed to send response",
			zap.String("peer", sock.RemoteAddr()),
			zap.String("type", protocol.DescribeType(respType)),
			zap.Error(err))
	}
}

func (l *Listener) safeHandle(frame *protocol.Frame) (respType uint32, respBody []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("handler panicked",
				zap.String("type", protocol.DescribeType(frame.Type)),
				zap.Uint32("request_id", frame.RequestID),
				zap.Any("panic", r))
			respType = protocol.ResponseTypeFor(frame.Type)
			respBody = l.errorBody(fmt.Sprintf("internal error: %v", r))
		}
	}()
	return l.handler(context.Background(), frame)
}

// errorBody is the best-effort structured error response. Encoding an
// InvokeResponse cannot realistically fail, but if it does the peer
// still gets a non-empty parseable body.
func (l *Listener) errorBody(msg string) []byte {
	body, err := l.cfg.Codec.Encode(&message.InvokeResponse{
		Success: false,
		Error:   msg,
		Code:    message.CodeInternal,
	})
	if err != nil {
		return []byte(`{"success":false,"code":"INTERNAL"}`)
	}
	return body
}
