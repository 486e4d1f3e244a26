// Package client implements the serving side of the SDK: a concurrent
// function registry, an inbound dispatcher that executes registered
// handlers, and an outbound invoke path over the shared channel.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/cuihairu/croupier-go/codec"
	"github.com/cuihairu/croupier-go/config"
	"github.com/cuihairu/croupier-go/message"
	"github.com/cuihairu/croupier-go/middleware"
	"github.com/cuihairu/croupier-go/protocol"
	"github.com/cuihairu/croupier-go/registry"
	"github.com/cuihairu/croupier-go/transport"
	"github.com/cuihairu/croupier-go/types"
)

// ErrClientClosed is returned by every operation after Close.
var ErrClientClosed = errors.New("client: closed")

// entry is one registered function: handler, metadata, and the
// compiled input schema when the descriptor declares one.
type entry struct {
	handler    Handler
	descriptor *Descriptor
	schema     *gojsonschema.Schema
}

// Client is the combined inbound-serving and outbound-invoking façade.
type Client struct {
	cfg *config.Config
	log *zap.Logger
	cdc codec.Codec

	channel  *transport.Channel
	listener *transport.Listener
	reg      registry.Registry // nil when no registry endpoints are configured

	mu        sync.RWMutex
	functions map[string]*entry // full function name → entry

	middlewares []middleware.Middleware
	closed      atomic.Bool
}

// NewClient builds a client from configuration. The logger may be nil.
func NewClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tlsCfg, err := cfg.TLSClientConfig()
	if err != nil {
		return nil, err
	}

	cdc := codec.ByName(cfg.Codec)
	c := &Client{
		cfg:       cfg,
		log:       logger.Named("client"),
		cdc:       cdc,
		functions: make(map[string]*entry),
	}
	c.channel = transport.NewChannel(cfg.AgentAddr, transport.ChannelConfig{
		TLS:               tlsCfg,
		MaxMessageSize:    cfg.Limits.MaxMessageSize,
		DialTimeout:       cfg.Timeouts.Dial,
		CallTimeout:       cfg.Timeouts.Invoke,
		HeartbeatInterval: cfg.Timeouts.Heartbeat,
		ServiceID:         cfg.ServiceID,
		Codec:             cdc,
		Logger:            logger,
	})

	if len(cfg.Registry.Endpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints)
		if err != nil {
			return nil, fmt.Errorf("client: connect registry: %w", err)
		}
		c.reg = reg
	}
	return c, nil
}

// Use appends a dispatch middleware. Call before Serve.
func (c *Client) Use(mw middleware.Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// Register adds a function under descriptor.FullName(). Registering an
// already-registered name replaces the previous handler; the overwrite
// is logged, not an error.
func (c *Client) Register(desc *Descriptor, handler Handler) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if desc == nil || handler == nil {
		return fmt.Errorf("client: descriptor and handler are required")
	}

	d := *desc // registration owns its copy
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return err
	}

	var schema *gojsonschema.Schema
	if d.InputSchema != "" {
		var err error
		schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(d.InputSchema))
		if err != nil {
			return fmt.Errorf("client: compile input schema for %s: %w", d.FullName(), err)
		}
	}

	name := d.FullName()
	c.mu.Lock()
	if _, exists := c.functions[name]; exists {
		c.log.Warn("overwriting registered function", zap.String("function", name))
	}
	c.functions[name] = &entry{handler: handler, descriptor: &d, schema: schema}
	c.mu.Unlock()

	c.log.Info("function registered",
		zap.String("function", name),
		zap.String("version", d.Version),
		zap.String("risk", d.Risk))
	return nil
}

// RegisterFunc is Register with a bare function as the handler.
func (c *Client) RegisterFunc(desc *Descriptor, fn HandlerFunc) error {
	return c.Register(desc, fn)
}

// Unregister removes a function by full name and reports whether
// anything was removed.
func (c *Client) Unregister(functionID string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClientClosed
	}
	c.mu.Lock()
	_, ok := c.functions[functionID]
	delete(c.functions, functionID)
	c.mu.Unlock()
	return ok, nil
}

// SetEnabled toggles a registered function without unregistering it.
// Returns false when the function is unknown.
func (c *Client) SetEnabled(functionID string, enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.functions[functionID]
	if !ok {
		return false
	}
	e.descriptor.Enabled = enabled
	return true
}

// Functions returns a snapshot of the registered descriptors.
func (c *Client) Functions() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, 0, len(c.functions))
	for _, e := range c.functions {
		out = append(out, *e.descriptor)
	}
	return out
}

// Connect dials the agent and announces this client to it. The
// announcement is best-effort: a failure is logged and the connection
// stays usable.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.channel.Connect(); err != nil {
		return err
	}

	c.mu.RLock()
	count := len(c.functions)
	c.mu.RUnlock()
	body, err := c.cdc.Encode(&message.RegisterRequest{
		ServiceID: c.cfg.ServiceID,
		GameID:    c.cfg.GameID,
		Env:       c.cfg.Env,
		Addr:      c.cfg.ListenAddr,
		Functions: count,
	})
	if err == nil {
		_, err = c.channel.CallContext(ctx, protocol.TypeClientRegisterRequest, body)
	}
	if err != nil {
		c.log.Warn("agent registration failed", zap.Error(err))
	}
	return nil
}

// Disconnect closes the outbound channel. Serve is unaffected.
func (c *Client) Disconnect() error {
	return c.channel.Close()
}

// Serve binds the configured listen address, announces registered
// functions to the registry when one is configured, and dispatches
// inbound requests until ctx is canceled.
func (c *Client) Serve(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	chained := middleware.Chain(c.middlewares...)(c.dispatchInvoke)

	c.listener = transport.NewListener(c.cfg.ListenAddr, func(ctx context.Context, req *protocol.Frame) (uint32, []byte) {
		return c.handleFrame(ctx, req, chained)
	}, transport.ListenerConfig{
		MaxMessageSize: c.cfg.Limits.MaxMessageSize,
		MaxConcurrent:  c.cfg.Limits.MaxConcurrentMessages,
		StopTimeout:    c.cfg.Timeouts.Shutdown,
		Codec:          c.cdc,
		Logger:         c.log,
	})
	if err := c.listener.Listen(); err != nil {
		return err
	}

	c.announceFunctions()

	<-ctx.Done()
	c.withdrawFunctions()
	return c.listener.Stop()
}

// ListenAddr returns the bound listen address once Serve has started.
func (c *Client) ListenAddr() string {
	if c.listener != nil {
		return c.listener.Addr()
	}
	return c.cfg.ListenAddr
}

// Invoke calls a function registered elsewhere, through the agent.
// Returns the raw response payload.
func (c *Client) Invoke(ctx context.Context, functionID, payload string, opts *types.InvokeOptions) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}

	req := &message.InvokeRequest{
		FunctionID: functionID,
		Payload:    payload,
		GameID:     c.cfg.GameID,
		Env:        c.cfg.Env,
		CallerID:   c.cfg.ServiceID,
	}
	if opts != nil {
		if opts.GameID != "" {
			req.GameID = opts.GameID
		}
		if opts.Env != "" {
			req.Env = opts.Env
		}
		req.UserID = opts.UserID
		req.IdempotencyKey = opts.IdempotencyKey
		req.Metadata = opts.Metadata
	}
	body, err := c.cdc.Encode(req)
	if err != nil {
		return "", fmt.Errorf("client: encode invoke request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeoutOrDefault())
		defer cancel()
	}

	respBody, err := c.channel.CallContext(ctx, protocol.TypeInvokeRequest, body)
	if err != nil {
		return "", err
	}

	var resp message.InvokeResponse
	if err := c.cdc.Decode(respBody, &resp); err != nil {
		return "", fmt.Errorf("client: decode invoke response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("client: invoke %s: %s (%s)", functionID, resp.Error, resp.Code)
	}
	return resp.Payload, nil
}

// Close tears the client down: channel, listener, registry. Idempotent;
// all later operations fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.channel.Close()
	if c.listener != nil {
		c.withdrawFunctions()
		c.listener.Stop()
	}
	if c.reg != nil {
		c.reg.Close()
	}
	c.log.Info("client closed")
	return nil
}

// handleFrame routes one inbound frame by message type. Every request
// gets an answer; unknown types get a structured error so the peer is
// never left waiting.
func (c *Client) handleFrame(ctx context.Context, frame *protocol.Frame, chained middleware.HandlerFunc) (uint32, []byte) {
	switch frame.Type {
	case protocol.TypeInvokeRequest:
		var req message.InvokeRequest
		if err := c.cdc.Decode(frame.Body, &req); err != nil {
			return protocol.TypeInvokeResponse, c.encodeResponse(&message.InvokeResponse{
				Success: false,
				Error:   fmt.Sprintf("malformed invoke request: %v", err),
				Code:    message.CodeInvalidPayload,
			})
		}
		return protocol.TypeInvokeResponse, c.encodeResponse(chained(ctx, &req))

	case protocol.TypeClientHeartbeatRequest:
		body, _ := c.cdc.Encode(&message.HeartbeatResponse{
			Success:       true,
			NextHeartbeat: time.Now().Add(c.cfg.Timeouts.Heartbeat).UnixMilli(),
		})
		return protocol.TypeClientHeartbeatResponse, body

	case protocol.TypeLocalListRequest:
		names := make([]string, 0)
		for _, d := range c.Functions() {
			names = append(names, d.FullName())
		}
		body, _ := c.cdc.Encode(names)
		return protocol.TypeLocalListResponse, body

	default:
		c.log.Warn("unsupported inbound message type",
			zap.String("type", protocol.DescribeType(frame.Type)))
		return protocol.ResponseTypeFor(frame.Type), c.encodeResponse(&message.InvokeResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported message type %s", protocol.DescribeType(frame.Type)),
			Code:    message.CodeInternal,
		})
	}
}

// dispatchInvoke is the terminal handler behind the middleware chain:
// look up the function, build its call context, run it, and fold any
// failure into a structured error response.
func (c *Client) dispatchInvoke(ctx context.Context, req *message.InvokeRequest) *message.InvokeResponse {
	c.mu.RLock()
	e, ok := c.functions[req.FunctionID]
	c.mu.RUnlock()

	if !ok {
		return &message.InvokeResponse{
			Success: false,
			Error:   fmt.Sprintf("function %q not found", req.FunctionID),
			Code:    message.CodeFunctionNotFound,
		}
	}
	if !e.descriptor.Enabled {
		return &message.InvokeResponse{
			Success: false,
			Error:   fmt.Sprintf("function %q is disabled", req.FunctionID),
			Code:    message.CodeFunctionNotFound,
		}
	}

	if e.schema != nil && req.Payload != "" {
		result, err := e.schema.Validate(gojsonschema.NewStringLoader(req.Payload))
		if err != nil {
			return &message.InvokeResponse{
				Success: false,
				Error:   fmt.Sprintf("payload validation: %v", err),
				Code:    message.CodeInvalidPayload,
			}
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				msgs = append(msgs, desc.String())
			}
			return &message.InvokeResponse{
				Success: false,
				Error:   "payload validation: " + strings.Join(msgs, "; "),
				Code:    message.CodeInvalidPayload,
			}
		}
	}

	call := &CallContext{
		FunctionID:     req.FunctionID,
		CallID:         uuid.NewString(),
		GameID:         firstNonEmpty(req.GameID, c.cfg.GameID),
		Env:            firstNonEmpty(req.Env, c.cfg.Env),
		UserID:         req.UserID,
		Timestamp:      time.Now(),
		IdempotencyKey: req.IdempotencyKey,
		CallerID:       req.CallerID,
	}

	result, err := e.handler.Invoke(ctx, call, req.Payload)
	if err != nil {
		return &message.InvokeResponse{
			Success: false,
			Error:   err.Error(),
			Code:    message.CodeHandlerError,
		}
	}
	return &message.InvokeResponse{Success: true, Payload: result}
}

func (c *Client) encodeResponse(resp *message.InvokeResponse) []byte {
	body, err := c.cdc.Encode(resp)
	if err != nil {
		// Cannot realistically happen for these envelopes; answer
		// something parseable regardless.
		return []byte(`{"success":false,"code":"INTERNAL"}`)
	}
	return body
}

func (c *Client) announceFunctions() {
	if c.reg == nil {
		return
	}
	inst := registry.FunctionInstance{
		Addr:      c.listener.Addr(),
		ServiceID: c.cfg.ServiceID,
	}
	for _, d := range c.Functions() {
		inst.Version = d.Version
		if err := c.reg.Announce(c.cfg.GameID, c.cfg.Env, d.FullName(), inst, c.cfg.Registry.TTL); err != nil {
			c.log.Warn("announce failed", zap.String("function", d.FullName()), zap.Error(err))
		}
	}
}

func (c *Client) withdrawFunctions() {
	if c.reg == nil || c.listener == nil {
		return
	}
	for _, d := range c.Functions() {
		if err := c.reg.Withdraw(c.cfg.GameID, c.cfg.Env, d.FullName(), c.listener.Addr()); err != nil {
			c.log.Warn("withdraw failed", zap.String("function", d.FullName()), zap.Error(err))
		}
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
