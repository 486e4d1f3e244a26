package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/cuihairu/croupier-go/registry"
)

// ConsistentHashBalancer maps keys to instances on a hash ring: the
// same key lands on the same instance until the ring changes, which
// gives cache affinity for functions that keep per-key local state.
//
// Each real instance contributes N virtual nodes to the ring so the
// distribution stays statistically even with few instances.
//
// Note: Pick takes a string key (typically the idempotency key or the
// caller user id), so this type does not implement Balancer directly.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32 // sorted hash values on the ring
	nodes    map[uint32]*registry.FunctionInstance
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per
// instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		ring:     []uint32{},
		nodes:    make(map[uint32]*registry.FunctionInstance),
	}
}

// Add places an instance onto the ring with N virtual nodes, each
// hashed from "{addr}#{i}".
func (b *ConsistentHashBalancer) Add(instance *registry.FunctionInstance) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", instance.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	// Keep the ring sorted for binary search in Pick.
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Pick hashes the key and binary-searches for the first node at or
// after it on the ring, wrapping around past the end.
func (b *ConsistentHashBalancer) Pick(key string) (*registry.FunctionInstance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("no instances available")
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
