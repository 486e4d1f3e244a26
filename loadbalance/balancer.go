// Package loadbalance provides strategies for choosing one serving
// instance when several processes announce the same function.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless functions, equal-capacity instances
//   - WeightedRandom:  heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  functions with local state or caches
package loadbalance

import "github.com/cuihairu/croupier-go/registry"

// Balancer selects one instance from the available list. Pick runs on
// every outbound call and must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.FunctionInstance) (*registry.FunctionInstance, error)

	// Name returns the strategy name, for logging.
	Name() string
}
