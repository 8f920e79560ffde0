package metrics_test

import (
	"sync"
	"testing"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/metrics"
)

func TestPoolObserverCounts(t *testing.T) {
	m := metrics.New()
	key := client.PoolKey{Authority: "example.com:443", Proto: client.ProtoHTTP2}

	m.ConnEstablished(key, "h2")
	m.ConnEstablished(key, "h2")
	m.ConnEvicted(key, "idle-timeout")
	m.ConnEvicted(key, "capacity")
	m.ConnEvicted(key, "idle-timeout")

	established, evicted, _, _ := m.Snapshot()
	if established != 2 {
		t.Errorf("ConnsEstablished: got %d, want 2", established)
	}
	if evicted != 3 {
		t.Errorf("ConnsEvicted: got %d, want 3", evicted)
	}

	byReason := m.EvictionsByReason()
	if byReason["idle-timeout"] != 2 {
		t.Errorf("idle-timeout evictions: got %d, want 2", byReason["idle-timeout"])
	}
	if byReason["capacity"] != 1 {
		t.Errorf("capacity evictions: got %d, want 1", byReason["capacity"])
	}
}

func TestRequestCounters(t *testing.T) {
	m := metrics.New()
	m.IncrementRequests()
	m.IncrementRequests()
	m.IncrementFailures()

	_, _, requests, failures := m.Snapshot()
	if requests != 2 {
		t.Errorf("Requests: got %d, want 2", requests)
	}
	if failures != 1 {
		t.Errorf("Failures: got %d, want 1", failures)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := metrics.New()
	key := client.PoolKey{Authority: "example.com:443"}
	const goroutines = 1000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			m.IncrementRequests()
			m.ConnEstablished(key, "h2")
			m.ConnEvicted(key, "idle-timeout")
		}()
	}
	wg.Wait()

	established, evicted, requests, _ := m.Snapshot()
	if requests != goroutines {
		t.Errorf("Requests: got %d, want %d", requests, goroutines)
	}
	if established != goroutines {
		t.Errorf("ConnsEstablished: got %d, want %d", established, goroutines)
	}
	if evicted != goroutines {
		t.Errorf("ConnsEvicted: got %d, want %d", evicted, goroutines)
	}
}
