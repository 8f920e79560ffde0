package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// PooledConn owns one transport-layer stream: the TLS session plus the
// negotiated HTTP version on top of it.  The pool is the exclusive owner;
// request code only borrows a connection between checkout and Release.
//
// The back-reference into the pool is a plain callback installed at
// registration, not a pointer to the pool, so a dropped pool is collectable
// even while connections are draining.
type PooledConn struct {
	id  uint64
	key PoolKey

	raw       net.Conn
	alpn      string
	profileID string
	createdAt time.Time

	// h2 is set when ALPN selected HTTP/2.
	h2 *http2.ClientConn

	// br buffers the read side for HTTP/1 response parsing.
	br *bufio.Reader

	// exchangeMu serialises HTTP/1 exchanges; HTTP/2 multiplexes and never
	// takes it.
	exchangeMu sync.Mutex

	mu         sync.Mutex
	inflight   int
	idleSince  time.Time
	maxStreams uint32
	broken     bool

	release func(*PooledConn)
}

// newPooledConn assembles a connection after a fully successful handshake.
// maxStreams caps concurrent HTTP/2 exchanges (0 = unlimited) and is ignored
// for HTTP/1.
func newPooledConn(raw net.Conn, alpn, profileID string, h2conn *http2.ClientConn, maxStreams uint32) *PooledConn {
	c := &PooledConn{
		raw:        raw,
		alpn:       alpn,
		profileID:  profileID,
		createdAt:  time.Now(),
		h2:         h2conn,
		maxStreams: maxStreams,
		idleSince:  time.Now(),
	}
	if h2conn == nil {
		c.br = bufio.NewReader(raw)
	}
	return c
}

// ID is the pool-assigned connection identity, stable for the connection's
// lifetime.  Tests use it to verify reuse.
func (c *PooledConn) ID() uint64 { return c.id }

// Key returns the PoolKey this connection is registered under.
func (c *PooledConn) Key() PoolKey { return c.key }

// ALPN returns the negotiated application protocol ("h2", "http/1.1", or ""
// for plaintext HTTP/1).
func (c *PooledConn) ALPN() string { return c.alpn }

// ProfileID names the emulation profile the connection was built under.
// The profile is not part of the PoolKey; this field lets callers and tests
// observe which fingerprint a reused connection actually carries.
func (c *PooledConn) ProfileID() string { return c.profileID }

// NetConn exposes the underlying transport stream.  Used by the WebSocket
// adapter after a successful upgrade; ordinary request code never touches
// it.
func (c *PooledConn) NetConn() net.Conn { return c.raw }

// IsHTTP2 reports whether the connection multiplexes.
func (c *PooledConn) IsHTTP2() bool { return c.h2 != nil }

// Hijack hands the raw stream and its buffered reader to a protocol
// upgrader.  Only meaningful for HTTP/1 connections built with
// ConnectExclusive; a pooled connection must never be hijacked because the
// pool would keep routing requests onto it.
func (c *PooledConn) Hijack() (net.Conn, *bufio.Reader) { return c.raw, c.br }

// checkout attempts to claim the connection for one more exchange.
// HTTP/1: only an idle connection can be claimed.  HTTP/2: claims succeed
// until the fingerprint's stream limit or the transport stops accepting new
// requests.
func (c *PooledConn) checkout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return false
	}
	if c.h2 == nil {
		if c.inflight > 0 {
			return false
		}
	} else {
		if c.maxStreams > 0 && uint32(c.inflight) >= c.maxStreams {
			return false
		}
		if !c.h2.CanTakeNewRequest() {
			return false
		}
	}
	c.inflight++
	c.idleSince = time.Time{}
	return true
}

// Release returns the borrow taken by a successful Acquire.  When the last
// in-flight exchange releases, the connection re-enters the idle set (or is
// torn down if it was invalidated meanwhile).
func (c *PooledConn) Release() {
	c.mu.Lock()
	c.inflight--
	if c.inflight < 0 {
		c.inflight = 0
	}
	if c.inflight == 0 {
		c.idleSince = time.Now()
	}
	rel := c.release
	c.mu.Unlock()
	if rel != nil {
		rel(c)
	}
}

func (c *PooledConn) markBroken() {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
}

func (c *PooledConn) isBroken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

func (c *PooledConn) isIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight == 0
}

func (c *PooledConn) idleStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleSince
}

func (c *PooledConn) expired(timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight == 0 && !c.idleSince.IsZero() && time.Since(c.idleSince) > timeout
}

// h2DrainTimeout bounds the graceful GOAWAY drain of a closing HTTP/2
// connection before its socket is cut.
const h2DrainTimeout = 5 * time.Second

// closeTransport tears the transport down without blocking the caller.
// HTTP/2 connections drain in the background: a GOAWAY goes out and
// in-flight streams get h2DrainTimeout to finish before the socket is cut.
// Pool eviction paths call this, so a slow body reader on one connection
// must never be able to stall them.
func (c *PooledConn) closeTransport() {
	if c.h2 != nil {
		h2, raw := c.h2, c.raw
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h2DrainTimeout)
			_ = h2.Shutdown(ctx)
			cancel()
			if raw != nil {
				_ = raw.Close()
			}
		}()
		return
	}
	if c.raw != nil {
		_ = c.raw.Close()
	}
}

// RoundTrip performs one exchange.  ordered supplies the fingerprint-ordered
// header sequence; for HTTP/1 it is written verbatim onto the wire, for
// HTTP/2 the raw-cased names are installed into the request map (the x/net
// encoder lowercases per RFC 7541, so casing survives where the protocol
// allows it).
//
// The borrow taken at Acquire time is returned when the response body is
// closed, on both protocol paths.  Until then the connection counts as busy,
// so the fingerprint's stream cap covers bodies still being read and the
// pool never evicts a connection mid-stream.
func (c *PooledConn) RoundTrip(req *http.Request, ordered *OrderedHeader) (*http.Response, error) {
	if ordered != nil {
		ordered.ApplyToRequest(req)
	}
	if c.h2 != nil {
		resp, err := c.h2.RoundTrip(req)
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("h2 round trip %s: %w", req.URL.Host, err)
		}
		resp.Body = &h2Body{ReadCloser: resp.Body, conn: c}
		return resp, nil
	}
	return c.roundTripHTTP1(req, ordered)
}

// roundTripHTTP1 serialises one exchange over the raw connection.  The
// exchange lock is held from request write until the body is fully consumed
// or closed, which is what makes the pool's "never two concurrent exchanges
// on a non-multiplexed connection" guarantee hold.
func (c *PooledConn) roundTripHTTP1(req *http.Request, ordered *OrderedHeader) (*http.Response, error) {
	c.exchangeMu.Lock()

	fail := func(err error) (*http.Response, error) {
		c.markBroken()
		c.exchangeMu.Unlock()
		c.Release()
		return nil, err
	}

	if err := WriteHTTP1Request(c.raw, req, ordered); err != nil {
		return fail(fmt.Errorf("write request: %w", err))
	}
	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}

	// The server may close the connection after this exchange; flag it so
	// the pool drops it instead of reusing a doomed socket.
	if resp.Close {
		c.markBroken()
	}

	resp.Body = &http1Body{ReadCloser: resp.Body, conn: c}
	return resp, nil
}

// http1Body keeps the HTTP/1 connection checked out until the caller
// finishes with the response, then unlocks the exchange and returns the
// connection to the pool exactly once.
type http1Body struct {
	io.ReadCloser
	conn *PooledConn
	once sync.Once
}

func (b *http1Body) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() {
		b.conn.exchangeMu.Unlock()
		b.conn.Release()
	})
	return err
}

// h2Body holds the HTTP/2 stream borrow until the caller finishes with the
// response, so inflight accounting covers open bodies, not just the header
// exchange.
type h2Body struct {
	io.ReadCloser
	conn *PooledConn
	once sync.Once
}

func (b *h2Body) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.conn.Release)
	return err
}
