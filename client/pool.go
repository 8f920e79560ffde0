package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// PoolObserver receives connection lifecycle events for external metrics
// collection.  The pool stores nothing itself; both callbacks must be cheap
// and non-blocking because they run under pool internals.
type PoolObserver interface {
	ConnEstablished(key PoolKey, alpn string)
	ConnEvicted(key PoolKey, reason string)
}

// PoolOptions tunes the connection pool.  Zero values select defaults.
type PoolOptions struct {
	// IdleTimeout evicts connections that sit idle this long.  Default 90s,
	// matching browser keep-alive behaviour.
	IdleTimeout time.Duration

	// MaxPerKey caps live connections per PoolKey.  Default 6, the
	// per-host limit Chrome uses.
	MaxPerKey int

	// MaxTotal caps live connections across all keys.  Default 100.
	MaxTotal int

	// Observer receives establish/evict events; may be nil.
	Observer PoolObserver
}

const (
	defaultIdleTimeout = 90 * time.Second
	defaultMaxPerKey   = 6
	defaultMaxTotal    = 100
)

// ConnPool is the keyed cache of live transport connections.
//
// Invariants it enforces:
//   - every pooled connection is reachable under exactly one PoolKey;
//   - at most one connection build runs per key at a time — concurrent
//     Acquire calls for a cold key coordinate through a singleflight group
//     and share the one result (or the one failure; failures are never
//     cached);
//   - an HTTP/1 connection is never handed to two concurrent exchanges
//     (exchange serialisation lives on the connection itself); an HTTP/2
//     connection is shared up to its advertised stream limit;
//   - a connection is only published to the pool after its handshake fully
//     succeeded, so a cancelled build never leaves a half-built connection
//     registered as ready.
//
// The pool never retries a failed build and never reconnects a broken
// connection; both decisions belong to the caller's retry policy.
//
// The pool mutex guards only the key map; transport teardown always happens
// after the lock is dropped, so a connection draining slowly cannot stall
// operations on unrelated keys.
type ConnPool struct {
	idleTimeout time.Duration
	maxPerKey   int
	maxTotal    int
	observer    PoolObserver

	mu      sync.Mutex
	entries map[PoolKey][]*PooledConn
	total   int
	closed  bool

	group  singleflight.Group
	nextID atomic.Uint64

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// NewConnPool creates a pool and starts its idle-eviction janitor.
func NewConnPool(opts PoolOptions) *ConnPool {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.MaxPerKey <= 0 {
		opts.MaxPerKey = defaultMaxPerKey
	}
	if opts.MaxTotal <= 0 {
		opts.MaxTotal = defaultMaxTotal
	}
	p := &ConnPool{
		idleTimeout: opts.IdleTimeout,
		maxPerKey:   opts.MaxPerKey,
		maxTotal:    opts.MaxTotal,
		observer:    opts.Observer,
		entries:     make(map[PoolKey][]*PooledConn),
		stopJanitor: make(chan struct{}),
	}
	go p.janitor()
	return p
}

// ConnectionBuilder performs the full connection establishment chain (dial,
// proxy tunnel, TLS handshake, protocol negotiation) and returns a
// ready-to-register connection.  It must not publish the connection anywhere
// itself; the pool registers it only on success.
type ConnectionBuilder func(ctx context.Context) (*PooledConn, error)

// Acquire returns a live connection for key, reusing an idle or multiplexable
// pooled connection when one exists and otherwise invoking build exactly once
// no matter how many callers race on the same cold key.
func (p *ConnPool) Acquire(ctx context.Context, key PoolKey, build ConnectionBuilder) (*PooledConn, error) {
	if c := p.tryReuse(key); c != nil {
		return c, nil
	}

	ch := p.group.DoChan(key.String(), func() (interface{}, error) {
		// Re-check under the flight: a connection released between the
		// miss and the flight start is reusable without a build.
		if c := p.tryReuse(key); c != nil {
			return c, nil
		}
		c, err := runBuilder(ctx, build)
		if err != nil {
			return nil, err
		}
		if err := p.register(key, c); err != nil {
			c.closeTransport()
			return nil, err
		}
		return c, nil
	})

	select {
	case <-ctx.Done():
		// The in-flight build keeps running for other waiters; this caller
		// just stops waiting.
		return nil, connectErr(StageConnecting, key.Authority, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		c := res.Val.(*PooledConn)
		if !c.checkout() {
			// The shared result was evicted or saturated between build and
			// pickup (possible for late waiters); fall back to a fresh
			// acquire cycle.
			return p.Acquire(ctx, key, build)
		}
		return c, nil
	}
}

// runBuilder executes build with panic containment: a panicking builder is
// converted into the waiters' ConnectError instead of poisoning the per-key
// flight.
func runBuilder(ctx context.Context, build ConnectionBuilder) (c *PooledConn, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, &ConnectError{
				Stage: StageConnecting,
				Err:   fmt.Errorf("connection builder panic: %v", r),
			}
		}
	}()
	return build(ctx)
}

// tryReuse returns a pooled connection usable for one more exchange, or nil.
// Expired idle connections encountered during the scan are unlinked inline so
// an over-age connection is never returned even between janitor runs; their
// transports are closed once the pool lock is dropped.
func (p *ConnPool) tryReuse(key PoolKey) *PooledConn {
	var reused *PooledConn
	var victims []*PooledConn

	p.mu.Lock()
	if !p.closed {
		conns := p.entries[key]
		for i := 0; i < len(conns); {
			c := conns[i]
			if c.expired(p.idleTimeout) {
				p.removeLocked(key, c, "idle-timeout")
				victims = append(victims, c)
				conns = p.entries[key]
				continue
			}
			if c.checkout() {
				reused = c
				break
			}
			i++
		}
	}
	p.mu.Unlock()

	closeAll(victims)
	return reused
}

func closeAll(victims []*PooledConn) {
	for _, c := range victims {
		c.closeTransport()
	}
}

// register publishes a freshly built connection under key and wires its
// release callback.  The connection holds only this callback — never an
// owning reference back into the pool — so dropping the pool tears down
// cleanly.
func (p *ConnPool) register(key PoolKey, c *PooledConn) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	c.id = p.nextID.Add(1)
	c.key = key
	c.release = func(conn *PooledConn) { p.release(key, conn) }

	p.entries[key] = append(p.entries[key], c)
	p.total++

	victims := p.evictOverflowLocked(key, c)
	p.mu.Unlock()
	closeAll(victims)

	if p.observer != nil {
		p.observer.ConnEstablished(key, c.alpn)
	}
	return nil
}

// evictOverflowLocked enforces the per-key and aggregate caps,
// oldest-idle-first.  In-use connections are never evicted for capacity, and
// neither is keep (the connection being registered right now; evicting it
// before its waiters check it out would make a saturated key unfillable).
// Connections surviving a cap breach this way are reaped when they release
// into an over-cap slot.  Returns the unlinked victims; the caller closes
// their transports after dropping the pool lock.
func (p *ConnPool) evictOverflowLocked(key PoolKey, keep *PooledConn) []*PooledConn {
	var victims []*PooledConn
	for len(p.entries[key]) > p.maxPerKey {
		v := p.evictOldestIdleLocked(key, keep)
		if v == nil {
			break
		}
		victims = append(victims, v)
	}
	for p.total > p.maxTotal {
		victimKey, ok := p.oldestIdleKeyLocked(keep)
		if !ok {
			break
		}
		v := p.evictOldestIdleLocked(victimKey, keep)
		if v == nil {
			break
		}
		victims = append(victims, v)
	}
	return victims
}

func (p *ConnPool) evictOldestIdleLocked(key PoolKey, keep *PooledConn) *PooledConn {
	var oldest *PooledConn
	for _, c := range p.entries[key] {
		if c == keep || !c.isIdle() {
			continue
		}
		if oldest == nil || c.idleStart().Before(oldest.idleStart()) {
			oldest = c
		}
	}
	if oldest != nil {
		p.removeLocked(key, oldest, "capacity")
	}
	return oldest
}

func (p *ConnPool) oldestIdleKeyLocked(keep *PooledConn) (PoolKey, bool) {
	var (
		bestKey  PoolKey
		bestTime time.Time
		found    bool
	)
	for key, conns := range p.entries {
		for _, c := range conns {
			if c == keep || !c.isIdle() {
				continue
			}
			if !found || c.idleStart().Before(bestTime) {
				bestKey, bestTime, found = key, c.idleStart(), true
			}
		}
	}
	return bestKey, found
}

// release is the connection's way back into the idle set when its last
// exchange completes.  A connection marked broken is removed instead of
// pooled, and a connection releasing into an over-cap slot is reaped here
// (the slot can exceed its cap transiently while every resident connection
// is busy).
func (p *ConnPool) release(key PoolKey, c *PooledConn) {
	evicted := false
	p.mu.Lock()
	switch {
	case c.isBroken() || p.closed:
		evicted = p.removeLocked(key, c, "invalidated")
	case c.isIdle() && (len(p.entries[key]) > p.maxPerKey || p.total > p.maxTotal):
		evicted = p.removeLocked(key, c, "capacity")
	}
	p.mu.Unlock()
	if evicted {
		c.closeTransport()
	}
}

// Invalidate removes c from the pool after a connection-level protocol
// error.  If exchanges are still in flight the connection is flagged and
// removed when the last one releases it; either way it is never reused.
func (p *ConnPool) Invalidate(c *PooledConn) {
	c.markBroken()
	evicted := false
	p.mu.Lock()
	if c.isIdle() {
		evicted = p.removeLocked(c.key, c, "invalidated")
	}
	p.mu.Unlock()
	if evicted {
		c.closeTransport()
	}
}

// removeLocked unlinks c from its key slot and fires the eviction event,
// reporting whether c was actually linked.  It never touches the transport:
// the caller closes it after dropping the pool lock, so a graceful HTTP/2
// drain can take as long as it needs without holding up the pool.
func (p *ConnPool) removeLocked(key PoolKey, c *PooledConn, reason string) bool {
	conns := p.entries[key]
	for i, cc := range conns {
		if cc == c {
			p.entries[key] = append(conns[:i], conns[i+1:]...)
			p.total--
			if len(p.entries[key]) == 0 {
				delete(p.entries, key)
			}
			if p.observer != nil {
				p.observer.ConnEvicted(key, reason)
			}
			return true
		}
	}
	return false
}

// janitor periodically prunes idle-expired connections.
func (p *ConnPool) janitor() {
	interval := p.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopJanitor:
			return
		case <-ticker.C:
			p.pruneExpired()
		}
	}
}

func (p *ConnPool) pruneExpired() {
	var victims []*PooledConn
	p.mu.Lock()
	for key, conns := range p.entries {
		for i := 0; i < len(conns); {
			if conns[i].expired(p.idleTimeout) {
				victims = append(victims, conns[i])
				p.removeLocked(key, conns[i], "idle-timeout")
				conns = p.entries[key]
				continue
			}
			i++
		}
	}
	p.mu.Unlock()
	closeAll(victims)
}

// Len reports the number of pooled connections across all keys.
func (p *ConnPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Close evicts every connection and rejects future Acquire calls.
func (p *ConnPool) Close() {
	p.stopOnce.Do(func() { close(p.stopJanitor) })
	var victims []*PooledConn
	p.mu.Lock()
	p.closed = true
	for key, conns := range p.entries {
		for _, c := range conns {
			victims = append(victims, c)
			if p.observer != nil {
				p.observer.ConnEvicted(key, "pool-closed")
			}
		}
		delete(p.entries, key)
	}
	p.total = 0
	p.mu.Unlock()
	closeAll(victims)
}
