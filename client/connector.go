// Package client implements the emulation-aware connection layer: a TLS
// connector factory driven by fingerprint descriptors, an HTTP/2 settings
// negotiator, a composite-keyed connection pool, and the connector that glues
// them together so every outbound connection reproduces the active profile's
// wire fingerprint.
//
// Pooled connections are keyed by (authority, egress identity, protocol
// class) — deliberately NOT by emulation profile.  Switching the active
// profile therefore does not purge compatible-looking pooled connections:
// they stay usable until idle-evicted while every new build uses the new
// profile.  This mirrors the behaviour of the systems this layer emulates
// (it avoids connection churn on transient profile toggling) and is part of
// the documented contract; callers that need a hard cut must drain the pool
// explicitly.
package client

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/cloakhttp/cloak/profile"
)

// ConnectorOptions configures a Connector.  Zero values select defaults.
type ConnectorOptions struct {
	Pool        PoolOptions
	CertStore   *CertStore
	DialTimeout time.Duration
	Logger      *logrus.Logger
}

const defaultDialTimeout = 30 * time.Second

// Connector builds and routes transport connections.  Given a request
// target, the active emulation profile, and an egress identity, it computes
// the pool key, reuses a pooled connection when possible, and otherwise
// chains the TLS connector factory and HTTP/2 negotiator into a fresh build.
//
// A new connection moves through resolving → connecting → tls-handshake →
// protocol-negotiation before it is published; a failure at any stage is
// terminal for that build and surfaces as a stage-tagged ConnectError with
// no pool-side retry.
type Connector struct {
	pool       *ConnPool
	tlsFactory *TLSFactory
	store      *CertStore
	dialTO     time.Duration
	log        *logrus.Logger

	h2mu sync.Mutex
	h2ts map[string]*http2.Transport
}

// NewConnector creates a Connector with its own connection pool.
func NewConnector(opts ConnectorOptions) *Connector {
	if opts.CertStore == nil {
		opts.CertStore = &CertStore{}
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Connector{
		pool:       NewConnPool(opts.Pool),
		tlsFactory: NewTLSFactory(DefaultTLSCacheSize),
		store:      opts.CertStore,
		dialTO:     opts.DialTimeout,
		log:        opts.Logger,
	}
}

// Pool exposes the underlying connection pool (for draining, metrics, and
// tests).
func (cn *Connector) Pool() *ConnPool { return cn.pool }

// Close shuts down the pool and every connection in it.
func (cn *Connector) Close() { cn.pool.Close() }

// PoolKeyFor computes the pool key for a target under the given profile and
// egress.  The protocol class comes from the profile's ALPN preference plus
// the target scheme: h2 requires TLS, so plain http always pools as HTTP/1.
func PoolKeyFor(target *url.URL, prof *profile.Profile, egress EgressIdentity) PoolKey {
	proto := ProtoHTTP1
	if target.Scheme == "https" && prof.ProtoClass() == "h2" {
		proto = ProtoHTTP2
	}
	return PoolKey{
		Authority: authority(target),
		Egress:    egress,
		Proto:     proto,
	}
}

// authority normalises the target to host:port.
func authority(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" || u.Scheme == "wss" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return net.JoinHostPort(host, port)
}

// Connect returns a live connection for target, built under prof and egress.
// Pool hits skip negotiation entirely; misses run the full build chain under
// the pool's one-build-per-key coordination.
func (cn *Connector) Connect(ctx context.Context, target *url.URL, prof *profile.Profile, egress EgressIdentity) (*PooledConn, error) {
	key := PoolKeyFor(target, prof, egress)
	return cn.pool.Acquire(ctx, key, func(ctx context.Context) (*PooledConn, error) {
		return cn.buildConn(ctx, target, prof, egress, nil)
	})
}

// ConnectExclusive builds a connection with the same fingerprint chain but
// never registers it in the pool.  The WebSocket adapter uses this: an
// upgraded (or rejected) connection has ambiguous protocol state and must
// not be reachable by later plain HTTP requests.  forceALPN, when non-nil,
// overrides the profile's ALPN list (browsers offer only http/1.1 for wss).
func (cn *Connector) ConnectExclusive(ctx context.Context, target *url.URL, prof *profile.Profile, egress EgressIdentity, forceALPN []string) (*PooledConn, error) {
	return cn.buildConn(ctx, target, prof, egress, forceALPN)
}

func (cn *Connector) buildConn(ctx context.Context, target *url.URL, prof *profile.Profile, egress EgressIdentity, forceALPN []string) (*PooledConn, error) {
	addr := authority(target)

	raw, err := cn.dialRaw(ctx, addr, egress)
	if err != nil {
		return nil, err
	}

	secure := target.Scheme == "https" || target.Scheme == "wss"
	if !secure {
		cn.log.WithFields(logrus.Fields{"addr": addr, "proto": "http/1.1"}).Debug("plaintext connection established")
		return newPooledConn(raw, "", prof.ID, nil, 0), nil
	}

	fp := prof.TLS
	if forceALPN != nil {
		fp.ALPN = forceALPN
	}
	tlsCfg, err := cn.tlsFactory.Build(&fp, cn.store)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	uconn, err := tlsCfg.Client(ctx, raw, target.Hostname())
	if err != nil {
		// Config-level rejections keep their type; handshake failures get
		// stage context.
		if _, ok := err.(*TLSConfigError); ok {
			return nil, err
		}
		return nil, connectErr(StageTLSHandshake, addr, err)
	}

	alpn := uconn.ConnectionState().NegotiatedProtocol
	if alpn != "h2" {
		cn.log.WithFields(logrus.Fields{"addr": addr, "proto": "http/1.1", "profile": prof.ID}).Debug("connection established")
		return newPooledConn(uconn, alpn, prof.ID, nil, 0), nil
	}

	frames, err := NegotiateHTTP2(&prof.HTTP2)
	if err != nil {
		_ = uconn.Close()
		return nil, err
	}
	t, err := cn.h2Transport(prof, frames)
	if err != nil {
		_ = uconn.Close()
		return nil, err
	}
	cc, err := t.NewClientConn(uconn)
	if err != nil {
		_ = uconn.Close()
		return nil, connectErr(StageProtocolNegotiation, addr, err)
	}

	cn.log.WithFields(logrus.Fields{"addr": addr, "proto": "h2", "profile": prof.ID}).Debug("connection established")
	return newPooledConn(uconn, alpn, prof.ID, cc, frames.MaxConcurrentStreams()), nil
}

// h2Transport returns the shared http2.Transport for prof, creating and
// caching it on first use.  Transports are cheap to share: per-connection
// state lives in the ClientConn, and sharing keeps HPACK table sizing
// consistent across all connections of one profile.
func (cn *Connector) h2Transport(prof *profile.Profile, frames *H2Frames) (*http2.Transport, error) {
	cn.h2mu.Lock()
	defer cn.h2mu.Unlock()
	if cn.h2ts == nil {
		cn.h2ts = make(map[string]*http2.Transport)
	}
	if t, ok := cn.h2ts[prof.ID]; ok {
		return t, nil
	}
	t := &http2.Transport{
		// Body decompression is handled by this layer (gzip, brotli, zstd);
		// letting x/net inject its own Accept-Encoding would fight the
		// profile's authored header set.
		DisableCompression: true,
	}
	frames.ConfigureTransport(t)
	cn.h2ts[prof.ID] = t
	return t, nil
}

// dialRaw establishes the TCP path to addr honouring the egress identity:
// source-address binding, interface binding, and HTTP CONNECT proxying.
func (cn *Connector) dialRaw(ctx context.Context, addr string, egress EgressIdentity) (net.Conn, error) {
	d := net.Dialer{Timeout: cn.dialTO}

	if egress.LocalAddr != "" {
		ip := net.ParseIP(egress.LocalAddr)
		if ip == nil {
			return nil, connectErr(StageResolving, addr, fmt.Errorf("invalid local address %q", egress.LocalAddr))
		}
		d.LocalAddr = &net.TCPAddr{IP: ip}
	} else if egress.Interface != "" {
		ip, err := interfaceAddr(egress.Interface)
		if err != nil {
			return nil, connectErr(StageResolving, addr, err)
		}
		d.LocalAddr = &net.TCPAddr{IP: ip}
	}

	if egress.Direct() {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, connectErr(StageConnecting, addr, err)
		}
		return conn, nil
	}

	return cn.dialViaProxy(ctx, &d, addr, egress.ProxyURL)
}

// dialViaProxy opens a CONNECT tunnel to addr through the HTTP proxy.
func (cn *Connector) dialViaProxy(ctx context.Context, d *net.Dialer, addr, proxyURL string) (net.Conn, error) {
	pu, err := url.Parse(proxyURL)
	if err != nil {
		return nil, connectErr(StageResolving, addr, fmt.Errorf("parse proxy URL: %w", err))
	}
	proxyAddr := pu.Host
	if pu.Port() == "" {
		proxyAddr = net.JoinHostPort(pu.Hostname(), "3128")
	}

	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, connectErr(StageConnecting, addr, fmt.Errorf("dial proxy %s: %w", proxyAddr, err))
	}

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", addr, addr)
	if pu.User != nil {
		cred := base64.StdEncoding.EncodeToString([]byte(pu.User.String()))
		req += "Proxy-Authorization: Basic " + cred + "\r\n"
	}
	req += "\r\n"

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{}) //nolint:errcheck
	}
	if _, err := conn.Write([]byte(req)); err != nil {
		_ = conn.Close()
		return nil, connectErr(StageConnecting, addr, fmt.Errorf("write CONNECT: %w", err))
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodConnect})
	if err != nil {
		_ = conn.Close()
		return nil, connectErr(StageConnecting, addr, fmt.Errorf("read CONNECT response: %w", err))
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, connectErr(StageConnecting, addr, fmt.Errorf("proxy refused tunnel: %s", resp.Status))
	}
	if br.Buffered() > 0 {
		// A compliant proxy sends nothing after the 200 until we speak;
		// leftover bytes would corrupt the TLS handshake.
		_ = conn.Close()
		return nil, connectErr(StageConnecting, addr, fmt.Errorf("proxy sent %d unexpected bytes after CONNECT", br.Buffered()))
	}
	return conn, nil
}

// interfaceAddr resolves a named interface to its first global unicast IPv4
// address, falling back to IPv6.
func interfaceAddr(name string) (net.IP, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", name, err)
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return nil, fmt.Errorf("interface %q addresses: %w", name, err)
	}
	var v6 net.IP
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || !ipn.IP.IsGlobalUnicast() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4, nil
		}
		if v6 == nil {
			v6 = ipn.IP
		}
	}
	if v6 != nil {
		return v6, nil
	}
	return nil, fmt.Errorf("interface %q has no usable address", name)
}
