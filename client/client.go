package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloakhttp/cloak/profile"
)

// Options configures a Client.  Zero values select defaults.
type Options struct {
	// Profile is the emulation profile ID to start with.  Default
	// profile.Chrome120.
	Profile string

	// Egress pins the network identity used for outbound connections.
	Egress EgressIdentity

	// Connector, when non-nil, is shared with other clients (and its pool
	// with them).  When nil the client owns a private connector built from
	// ConnectorOptions.
	Connector        *Connector
	ConnectorOptions ConnectorOptions

	// Jar stores and replays cookies; may be nil.
	Jar http.CookieJar

	// Timeout bounds each request end to end, including connection
	// establishment and body read.  Zero means no client-imposed deadline.
	Timeout time.Duration

	// DisableDecompression leaves response bodies encoded as received.
	DisableDecompression bool

	Logger *logrus.Logger
}

// Client is a request handle bound to one emulation profile and egress
// identity at a time.  Both are swappable at runtime; in-flight requests
// keep the configuration they started with, and pooled connections built
// under the previous profile remain reusable until they age out (the pool
// key does not include the profile).
//
// A Client is safe for concurrent use.  Clone shares the connector and pool
// but forks the mutable view, which is the cheap way to run many identities
// over one warm pool.
type Client struct {
	connector *Connector
	ownsConn  bool
	log       *logrus.Logger

	mu            sync.RWMutex
	prof          *profile.Profile
	egress        EgressIdentity
	extra         *OrderedHeader
	jar           http.CookieJar
	timeout       time.Duration
	disableDecomp bool
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	id := opts.Profile
	if id == "" {
		id = profile.Chrome120
	}
	prof, err := profile.Lookup(id)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	cn := opts.Connector
	owns := false
	if cn == nil {
		if opts.ConnectorOptions.Logger == nil {
			opts.ConnectorOptions.Logger = opts.Logger
		}
		cn = NewConnector(opts.ConnectorOptions)
		owns = true
	}
	return &Client{
		connector:     cn,
		ownsConn:      owns,
		log:           opts.Logger,
		prof:          prof,
		egress:        opts.Egress,
		extra:         &OrderedHeader{},
		jar:           opts.Jar,
		timeout:       opts.Timeout,
		disableDecomp: opts.DisableDecompression,
	}, nil
}

// SetProfile switches the active emulation profile.  Pooled connections
// built under the old profile are not purged; they keep serving until
// idle-evicted while new builds carry the new fingerprint.
func (c *Client) SetProfile(id string) error {
	prof, err := profile.Lookup(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.prof.ID
	c.prof = prof
	c.mu.Unlock()
	c.log.WithFields(logrus.Fields{"from": old, "to": id}).Debug("profile switched")
	return nil
}

// Profile returns the active profile.
func (c *Client) Profile() *profile.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prof
}

// SetEgress switches the egress identity for subsequent requests.  Because
// the identity is part of the pool key, connections for the old identity
// are simply never matched again; no purge is needed.
func (c *Client) SetEgress(e EgressIdentity) {
	c.mu.Lock()
	c.egress = e
	c.mu.Unlock()
}

// Egress returns the active egress identity.
func (c *Client) Egress() EgressIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.egress
}

// SetHeader installs a persistent header sent on every request, overriding
// the profile default of the same name.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	c.extra.Set(key, value)
	c.mu.Unlock()
}

// DelHeader removes a persistent header set via SetHeader.
func (c *Client) DelHeader(key string) {
	c.mu.Lock()
	c.extra.Del(key)
	c.mu.Unlock()
}

// Jar returns the cookie jar, or nil.
func (c *Client) Jar() http.CookieJar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jar
}

// Connector exposes the underlying connector (shared across clones).
func (c *Client) Connector() *Connector { return c.connector }

// Clone returns a client sharing this one's connector and connection pool
// but with an independent copy of the mutable configuration.
func (c *Client) Clone() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Client{
		connector:     c.connector,
		ownsConn:      false,
		log:           c.log,
		prof:          c.prof,
		egress:        c.egress,
		extra:         c.extra.Clone(),
		jar:           c.jar,
		timeout:       c.timeout,
		disableDecomp: c.disableDecomp,
	}
}

// Close shuts down the connector if this client owns it.  Clones and
// clients built on a shared connector leave it running.
func (c *Client) Close() {
	if c.ownsConn {
		c.connector.Close()
	}
}

// Do executes one request with the fingerprint pipeline applied: profile
// default headers, caller headers, persistent overrides, and jar cookies
// are merged, ordered by the profile's header template, and written with
// exact casing; the connection comes from the pool under the composite key.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	prof := c.prof
	egress := c.egress
	extra := c.extra.Clone()
	jar := c.jar
	timeout := c.timeout
	decomp := !c.disableDecomp
	c.mu.RUnlock()

	if req.URL == nil {
		return nil, fmt.Errorf("client: request has no URL")
	}
	switch req.URL.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("client: unsupported scheme %q", req.URL.Scheme)
	}

	ctx := req.Context()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		req = req.WithContext(ctx)
	}
	fail := func(err error) (*http.Response, error) {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	ordered := c.buildHeaders(req, prof, extra, jar)

	conn, err := c.connector.Connect(ctx, req.URL, prof, egress)
	if err != nil {
		return fail(err)
	}

	resp, err := conn.RoundTrip(req, ordered)
	if err != nil {
		return fail(fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Host, err))
	}

	if jar != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			jar.SetCookies(req.URL, cookies)
		}
	}
	if decomp {
		if err := decompressResponse(resp); err != nil {
			_ = resp.Body.Close()
			return fail(err)
		}
	}
	if cancel != nil {
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

// buildHeaders merges the header layers and runs them through the ordering
// engine.  Precedence, lowest to highest: profile defaults, request
// headers, persistent overrides, jar cookies.
func (c *Client) buildHeaders(req *http.Request, prof *profile.Profile, extra *OrderedHeader, jar http.CookieJar) *OrderedHeader {
	ordered := FromProfileHeaders(prof.DefaultHeaders)

	for key, vals := range req.Header {
		ordered.Del(key)
		for _, v := range vals {
			ordered.Add(key, v)
		}
	}
	for _, e := range extra.Entries() {
		ordered.Set(e.Key, e.Value)
	}

	if jar != nil {
		if cookies := jar.Cookies(req.URL); len(cookies) > 0 {
			parts := make([]string, 0, len(cookies))
			for _, ck := range cookies {
				parts = append(parts, ck.Name+"="+ck.Value)
			}
			name := "cookie"
			if prof.HeaderOrder.PreserveCase {
				name = "Cookie"
			}
			ordered.Set(name, strings.Join(parts, "; "))
		}
	}

	if req.Body != nil && req.ContentLength > 0 && !ordered.Has("content-length") {
		ordered.Add(contentLengthName(prof), fmt.Sprintf("%d", req.ContentLength))
	}

	return OrderHeaders(ordered, prof.HeaderOrder)
}

func contentLengthName(prof *profile.Profile) string {
	if prof.HeaderOrder.PreserveCase {
		return "Content-Length"
	}
	return "content-length"
}

// Get issues a GET through the fingerprint pipeline.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post issues a POST with the given content type and body.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return nil, err
	}
	name := "content-type"
	if c.Profile().HeaderOrder.PreserveCase {
		name = "Content-Type"
	}
	req.Header[name] = []string{contentType}
	return c.Do(req)
}

// cancelBody releases the request's timeout context when the body is
// closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)
	return err
}
