// etcd-backed implementation of the function registry.
//
// Layout:
//
//	Key:   /croupier/functions/{gameID}/{env}/{functionName}/{addr}
//	Value: JSON-encoded FunctionInstance
//
// Announcements use TTL-based leases: if the serving process crashes,
// the lease expires and the entry disappears on its own, so invokers
// never discover ghost instances.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/croupier/functions"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

func functionKey(gameID, env, functionName, addr string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", keyPrefix, gameID, env, functionName, addr)
}

func functionPrefix(gameID, env, functionName string) string {
	return fmt.Sprintf("%s/%s/%s/%s/", keyPrefix, gameID, env, functionName)
}

// Announce publishes the instance under a TTL lease and starts
// KeepAlive to renew it. The lease id stays local to the call so one
// EtcdRegistry can safely be shared by concurrent announcers.
func (r *EtcdRegistry) Announce(gameID, env, functionName string, inst FunctionInstance, ttl int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, functionKey(gameID, env, functionName, inst.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Withdraw removes an announcement, typically during graceful shutdown.
func (r *EtcdRegistry) Withdraw(gameID, env, functionName, addr string) error {
	_, err := r.client.Delete(context.TODO(), functionKey(gameID, env, functionName, addr))
	return err
}

// Discover returns all instances currently announcing functionName.
func (r *EtcdRegistry) Discover(gameID, env, functionName string) ([]FunctionInstance, error) {
	resp, err := r.client.Get(context.TODO(), functionPrefix(gameID, env, functionName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]FunctionInstance, 0)
	for _, kv := range resp.Kvs {
		var inst FunctionInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch monitors a function prefix and emits the refreshed instance
// list on every change (announcements, withdrawals, lease expiries).
func (r *EtcdRegistry) Watch(gameID, env, functionName string) <-chan []FunctionInstance {
	ch := make(chan []FunctionInstance, 1)
	prefix := functionPrefix(gameID, env, functionName)

	go func() {
		watchChan := r.client.Watch(context.TODO(), prefix, clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list on any change; simpler than
			// folding individual watch events.
			instances, _ := r.Discover(gameID, env, functionName)
			ch <- instances
		}
	}()

	return ch
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
