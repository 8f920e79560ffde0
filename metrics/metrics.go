// Package metrics provides lightweight, lock-free counters for the
// connection layer using atomic operations so they impose minimal overhead
// on hot paths.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloakhttp/cloak/client"
)

// Metrics tracks aggregate connection-pool and request statistics.
//
// All counters are accessed exclusively through atomic operations, which means:
//   - There is no mutex contention on the request path even under heavy
//     concurrency.
//   - The struct may be embedded or passed as a pointer without additional
//     synchronisation.
//
// Metrics implements client.PoolObserver, so wiring it in is one field in
// PoolOptions.  Eviction reasons are tracked per reason string under a small
// mutex because the reason set is open-ended; that path only runs on
// evictions, never per request.
type Metrics struct {
	// ConnsEstablished counts fully handshaken connections published to the
	// pool.
	ConnsEstablished uint64

	// ConnsEvicted counts connections removed from the pool for any reason.
	ConnsEvicted uint64

	// Requests counts requests dispatched through the client.
	Requests uint64

	// Failures counts requests that ended in a transport error.
	Failures uint64

	mu        sync.Mutex
	byReason  map[string]uint64
	startTime time.Time
}

var _ client.PoolObserver = (*Metrics)(nil)

// New creates a Metrics instance with the start time set to now.
func New() *Metrics {
	return &Metrics{
		byReason:  make(map[string]uint64),
		startTime: time.Now(),
	}
}

// ConnEstablished records a new pooled connection.  Part of
// client.PoolObserver; called by the pool with its lock released, so it must
// stay cheap.
func (m *Metrics) ConnEstablished(key client.PoolKey, alpn string) {
	atomic.AddUint64(&m.ConnsEstablished, 1)
}

// ConnEvicted records a pool eviction and its reason.
func (m *Metrics) ConnEvicted(key client.PoolKey, reason string) {
	atomic.AddUint64(&m.ConnsEvicted, 1)
	m.mu.Lock()
	m.byReason[reason]++
	m.mu.Unlock()
}

// IncrementRequests atomically increments the dispatched-request counter.
func (m *Metrics) IncrementRequests() {
	atomic.AddUint64(&m.Requests, 1)
}

// IncrementFailures atomically increments the failed-request counter.
func (m *Metrics) IncrementFailures() {
	atomic.AddUint64(&m.Failures, 1)
}

// RequestsPerSecond returns the average request rate since creation.
// Returns 0 if called in the same wall-clock instant as creation to avoid
// division by zero.
func (m *Metrics) RequestsPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.Requests)) / elapsed
}

// EvictionsByReason returns a copy of the per-reason eviction counts.
func (m *Metrics) EvictionsByReason() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.byReason))
	for k, v := range m.byReason {
		out[k] = v
	}
	return out
}

// Snapshot returns a point-in-time copy of the counters.  The four atomic
// loads are not performed under a single lock, so the snapshot may be very
// slightly inconsistent at nanosecond granularity, which is acceptable for
// monitoring purposes.
func (m *Metrics) Snapshot() (established, evicted, requests, failures uint64) {
	return atomic.LoadUint64(&m.ConnsEstablished),
		atomic.LoadUint64(&m.ConnsEvicted),
		atomic.LoadUint64(&m.Requests),
		atomic.LoadUint64(&m.Failures)
}
