package invoker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cuihairu/croupier-go/config"
	"github.com/cuihairu/croupier-go/loadbalance"
	"github.com/cuihairu/croupier-go/registry"
	"github.com/cuihairu/croupier-go/types"
)

// DiscoveringInvoker routes each call directly to a process serving
// the function, resolved from the registry through a balancer, instead
// of going through a single configured agent. One connected invoker is
// kept per target address; its channel multiplexes concurrent calls.
type DiscoveringInvoker struct {
	cfg      *config.Config
	log      *zap.Logger
	reg      registry.Registry
	balancer loadbalance.Balancer

	mu    sync.Mutex
	inner map[string]*Invoker // addr → invoker bound to that addr
}

// NewDiscoveringInvoker wires a registry and balancer in front of
// per-address invokers.
func NewDiscoveringInvoker(cfg *config.Config, reg registry.Registry, bal loadbalance.Balancer, logger *zap.Logger) *DiscoveringInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveringInvoker{
		cfg:      cfg,
		log:      logger.Named("discovering-invoker"),
		reg:      reg,
		balancer: bal,
		inner:    make(map[string]*Invoker),
	}
}

// Invoke resolves a serving instance for functionID and calls it.
func (d *DiscoveringInvoker) Invoke(ctx context.Context, functionID, payload string, opts *types.InvokeOptions) (*types.InvokeResult, error) {
	instances, err := d.reg.Discover(d.cfg.GameID, d.cfg.Env, functionID)
	if err != nil {
		return nil, fmt.Errorf("invoker: discover %s: %w", functionID, err)
	}
	inst, err := d.balancer.Pick(instances)
	if err != nil {
		return nil, fmt.Errorf("invoker: pick instance for %s: %w", functionID, err)
	}

	inv, err := d.invokerFor(inst.Addr)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(ctx, functionID, payload, opts)
}

// invokerFor returns a connected invoker bound to addr, creating and
// caching one on first use.
func (d *DiscoveringInvoker) invokerFor(addr string) (*Invoker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if inv, ok := d.inner[addr]; ok {
		return inv, nil
	}

	cfg := *d.cfg
	cfg.AgentAddr = addr
	inv, err := New(&cfg, d.log)
	if err != nil {
		return nil, err
	}
	if err := inv.Connect(); err != nil {
		return nil, err
	}
	d.inner[addr] = inv
	return inv, nil
}

// Close releases every cached invoker.
func (d *DiscoveringInvoker) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for addr, inv := range d.inner {
		inv.Close()
		delete(d.inner, addr)
	}
	return nil
}
