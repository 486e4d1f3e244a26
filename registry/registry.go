// Package registry tracks which serving processes expose which
// functions, so invokers can discover a serving address by function
// name.
package registry

// FunctionInstance is one process serving a function.
type FunctionInstance struct {
	Addr      string // listen address of the serving process
	ServiceID string
	Version   string
	Weight    int // weight for load balancing
}

type Registry interface {
	// Announce publishes that inst serves functionName for the given
	// tenant, kept alive under a TTL.
	Announce(gameID, env, functionName string, inst FunctionInstance, ttl int64) error
	// Withdraw removes a previous announcement.
	Withdraw(gameID, env, functionName, addr string) error
	// Discover lists the instances currently serving functionName.
	Discover(gameID, env, functionName string) ([]FunctionInstance, error)
	// Watch emits the updated instance list whenever it changes.
	Watch(gameID, env, functionName string) <-chan []FunctionInstance
	Close() error
}
