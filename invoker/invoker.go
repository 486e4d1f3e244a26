// Package invoker is the call-only façade: single invokes, fan-out
// batches, and the lifecycle of long-running remote jobs.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cuihairu/croupier-go/codec"
	"github.com/cuihairu/croupier-go/config"
	"github.com/cuihairu/croupier-go/message"
	"github.com/cuihairu/croupier-go/protocol"
	"github.com/cuihairu/croupier-go/transport"
	"github.com/cuihairu/croupier-go/types"
)

// ErrInvokerClosed is returned by every operation after Close.
var ErrInvokerClosed = errors.New("invoker: closed")

// BatchRequest is one element of a fan-out batch.
type BatchRequest struct {
	FunctionID string
	Payload    string
}

// Invoker issues outbound calls over one channel to the agent.
type Invoker struct {
	cfg     *config.Config
	log     *zap.Logger
	cdc     codec.Codec
	channel *transport.Channel
	closed  atomic.Bool
}

// New builds an invoker from configuration. The logger may be nil.
func New(cfg *config.Config, logger *zap.Logger) (*Invoker, error) {
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
	inv := &Invoker{
		cfg: cfg,
		log: logger.Named("invoker"),
		cdc: cdc,
	}
	inv.channel = transport.NewChannel(cfg.AgentAddr, transport.ChannelConfig{
		TLS:            tlsCfg,
		MaxMessageSize: cfg.Limits.MaxMessageSize,
		DialTimeout:    cfg.Timeouts.Dial,
		CallTimeout:    cfg.Timeouts.Invoke,
		ServiceID:      cfg.ServiceID,
		Codec:          cdc,
		Logger:         logger,
	})
	return inv, nil
}

// Connect dials the agent.
func (inv *Invoker) Connect() error {
	if inv.closed.Load() {
		return ErrInvokerClosed
	}
	return inv.channel.Connect()
}

// Close releases the channel. Idempotent.
func (inv *Invoker) Close() error {
	if inv.closed.Swap(true) {
		return nil
	}
	return inv.channel.Close()
}

// Invoke calls one function and reports the outcome as an
// InvokeResult. Transport failures, remote errors, and cancellation
// are folded into a failed result rather than returned as errors; the
// only error is calling a closed invoker.
func (inv *Invoker) Invoke(ctx context.Context, functionID, payload string, opts *types.InvokeOptions) (*types.InvokeResult, error) {
	if inv.closed.Load() {
		return nil, ErrInvokerClosed
	}

	start := time.Now()
	fail := func(err error, code string) *types.InvokeResult {
		return &types.InvokeResult{
			Success:   false,
			Error:     err.Error(),
			ErrorCode: code,
			Duration:  time.Since(start),
		}
	}

	req := &message.InvokeRequest{
		FunctionID: functionID,
		Payload:    payload,
		GameID:     inv.cfg.GameID,
		Env:        inv.cfg.Env,
		CallerID:   inv.cfg.ServiceID,
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
	body, err := inv.cdc.Encode(req)
	if err != nil {
		return fail(err, message.CodeInternal), nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeoutOrDefault())
		defer cancel()
	}

	respBody, err := inv.channel.CallContext(ctx, protocol.TypeInvokeRequest, body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fail(err, message.CodeCanceled), nil
		}
		return fail(err, message.CodeInternal), nil
	}

	var resp message.InvokeResponse
	if err := inv.cdc.Decode(respBody, &resp); err != nil {
		return fail(fmt.Errorf("decode invoke response: %w", err), message.CodeInternal), nil
	}
	if !resp.Success {
		return &types.InvokeResult{
			Success:   false,
			Error:     resp.Error,
			ErrorCode: resp.Code,
			Duration:  time.Since(start),
		}, nil
	}
	return &types.InvokeResult{
		Success:  true,
		Data:     resp.Payload,
		Duration: time.Since(start),
	}, nil
}

// BatchInvoke fans out one Invoke per request concurrently and joins
// all results. Order is preserved; one request failing never aborts
// its siblings.
func (inv *Invoker) BatchInvoke(ctx context.Context, requests []BatchRequest, opts *types.InvokeOptions) ([]*types.InvokeResult, error) {
	if inv.closed.Load() {
		return nil, ErrInvokerClosed
	}

	results := make([]*types.InvokeResult, len(requests))
	var wg sync.WaitGroup
	for i, r := range requests {
		wg.Add(1)
		go func(i int, r BatchRequest) {
			defer wg.Done()
			res, err := inv.Invoke(ctx, r.FunctionID, r.Payload, opts)
			if err != nil {
				res = &types.InvokeResult{Success: false, Error: err.Error(), ErrorCode: message.CodeInternal}
			}
			results[i] = res
		}(i, r)
	}
	wg.Wait()
	return results, nil
}

// StartJob begins long-running work on the remote side and returns the
// opaque job id used to poll or cancel it.
func (inv *Invoker) StartJob(ctx context.Context, functionID, payload string) (string, error) {
	if inv.closed.Load() {
		return "", ErrInvokerClosed
	}

	body, err := inv.cdc.Encode(&message.StartJobRequest{
		FunctionID: functionID,
		Payload:    payload,
		GameID:     inv.cfg.GameID,
		Env:        inv.cfg.Env,
	})
	if err != nil {
		return "", fmt.Errorf("invoker: encode start job: %w", err)
	}

	respBody, err := inv.channel.CallContext(ctx, protocol.TypeStartJobRequest, body)
	if err != nil {
		return "", err
	}
	var resp message.StartJobResponse
	if err := inv.cdc.Decode(respBody, &resp); err != nil {
		return "", fmt.Errorf("invoker: decode start job response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("invoker: start job %s: %s", functionID, resp.Error)
	}
	return resp.JobID, nil
}

// CancelJob asks the remote side to cancel a job. True means the
// cancellation was accepted, not that the job is already gone.
func (inv *Invoker) CancelJob(ctx context.Context, jobID string) (bool, error) {
	if inv.closed.Load() {
		return false, ErrInvokerClosed
	}

	body, err := inv.cdc.Encode(&message.CancelJobRequest{JobID: jobID})
	if err != nil {
		return false, fmt.Errorf("invoker: encode cancel job: %w", err)
	}
	respBody, err := inv.channel.CallContext(ctx, protocol.TypeCancelJobRequest, body)
	if err != nil {
		return false, err
	}
	var resp message.CancelJobResponse
	if err := inv.cdc.Decode(respBody, &resp); err != nil {
		return false, fmt.Errorf("invoker: decode cancel job response: %w", err)
	}
	return resp.Accepted, nil
}

// GetJobStatus fetches a job snapshot. A nil job (and nil error) means
// the remote does not know the id.
func (inv *Invoker) GetJobStatus(ctx context.Context, jobID string) (*types.Job, error) {
	if inv.closed.Load() {
		return nil, ErrInvokerClosed
	}

	body, err := inv.cdc.Encode(&message.JobStatusRequest{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("invoker: encode job status: %w", err)
	}
	respBody, err := inv.channel.CallContext(ctx, protocol.TypeStreamJobRequest, body)
	if err != nil {
		return nil, err
	}
	var resp message.JobStatusResponse
	if err := inv.cdc.Decode(respBody, &resp); err != nil {
		return nil, fmt.Errorf("invoker: decode job status response: %w", err)
	}
	if !resp.Found {
		return nil, nil
	}

	job := &types.Job{
		ID:       resp.JobID,
		Status:   types.JobStatus(resp.Status),
		Progress: resp.Progress,
		Error:    resp.Error,
		Result:   resp.Result,
	}
	if resp.StartTime > 0 {
		t := time.UnixMilli(resp.StartTime)
		job.StartTime = &t
	}
	if resp.EndTime > 0 {
		t := time.UnixMilli(resp.EndTime)
		job.EndTime = &t
	}
	return job, nil
}
