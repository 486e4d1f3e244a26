package registry

import (
	"testing"
	"time"
)

// Requires a local etcd at localhost:2379.
func TestAnnounceAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry([]string{"localhost:2379"})
	if err != nil {
		t.Skipf("etcd not available: %v", err)
	}
	defer reg.Close()

	inst1 := FunctionInstance{Addr: "127.0.0.1:8001", ServiceID: "svc-a", Weight: 10, Version: "1.0.0"}
	inst2 := FunctionInstance{Addr: "127.0.0.1:8002", ServiceID: "svc-b", Weight: 5, Version: "1.0.0"}

	if err := reg.Announce("game1", "dev", "player.grant_item", inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Announce("game1", "dev", "player.grant_item", inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover("game1", "dev", "player.grant_item")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Withdraw("game1", "dev", "player.grant_item", inst1.Addr); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover("game1", "dev", "player.grant_item")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 {
		t.Fatalf("expect 1 instance after withdraw, got %d", len(instances))
	}
	if instances[0].Addr != inst2.Addr {
		t.Fatalf("expect %s, got %s", inst2.Addr, instances[0].Addr)
	}

	reg.Withdraw("game1", "dev", "player.grant_item", inst2.Addr)
}
