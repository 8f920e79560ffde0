// Package websocket upgrades connections to the WebSocket protocol through
// the same fingerprint chain as ordinary requests: the TLS ClientHello, the
// egress identity, and the handshake header order all come from the active
// emulation profile.
//
// Upgrade connections are built exclusively (never pooled).  ALPN is forced
// to http/1.1 for wss targets because the upgrade handshake is an HTTP/1
// mechanism and browsers negotiate wss the same way; a rejected upgrade
// closes the connection rather than returning it anywhere reusable.
package websocket

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloakhttp/cloak/client"
	"github.com/cloakhttp/cloak/profile"
)

// acceptGUID is the fixed GUID from RFC 6455 §1.3 used to derive
// Sec-WebSocket-Accept from the client key.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// rejectBodyLimit caps how much of a rejection response body is captured
// for the error.
const rejectBodyLimit = 8 << 10

// HandshakeRejectedError reports a server that answered the upgrade with
// anything other than a valid 101 response.  The underlying connection has
// already been closed when this error is returned.
type HandshakeRejectedError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Reason     string
}

func (e *HandshakeRejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("websocket: handshake rejected: %s", e.Reason)
	}
	return fmt.Sprintf("websocket: handshake rejected: %s", e.Status)
}

// Dialer performs profile-faithful WebSocket upgrades.  The zero value is
// not usable; Connector must be set.
type Dialer struct {
	Connector *client.Connector

	// HandshakeTimeout bounds the upgrade exchange.  Default 30s.
	HandshakeTimeout time.Duration

	// Subprotocols to offer via Sec-WebSocket-Protocol, in preference order.
	Subprotocols []string

	// Key pins the Sec-WebSocket-Key nonce, base64-encoded.  Empty means a
	// fresh random nonce per dial, which is what production dials want; a
	// fixed key exists for deterministic handshakes.
	Key string
}

// Dial connects to rawURL (ws or wss scheme), performs the upgrade under
// prof and egress, and returns the framed connection together with the
// server's 101 response.
func (d *Dialer) Dial(ctx context.Context, rawURL string, prof *profile.Profile, egress client.EgressIdentity, extra *client.OrderedHeader) (*Conn, *http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket: parse URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, nil, fmt.Errorf("websocket: unsupported scheme %q", u.Scheme)
	}
	if d.Key != "" {
		if b, err := base64.StdEncoding.DecodeString(d.Key); err != nil || len(b) != 16 {
			return nil, nil, fmt.Errorf("websocket: key must be 16 base64-encoded bytes")
		}
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pc, err := d.Connector.ConnectExclusive(ctx, u, prof, egress, []string{"http/1.1"})
	if err != nil {
		return nil, nil, err
	}
	raw, br := pc.Hijack()

	nonce := d.Key
	if nonce == "" {
		nonce, err = challengeKey()
		if err != nil {
			_ = raw.Close()
			return nil, nil, err
		}
	}

	req := &http.Request{
		Method: http.MethodGet,
		URL:    u,
		Host:   u.Host,
		Header: http.Header{},
	}
	ordered := d.handshakeHeaders(u, prof, nonce, extra)

	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}
	if err := client.WriteHTTP1Request(raw, req, ordered); err != nil {
		_ = raw.Close()
		return nil, nil, fmt.Errorf("websocket: write upgrade request: %w", err)
	}
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		_ = raw.Close()
		return nil, nil, fmt.Errorf("websocket: read upgrade response: %w", err)
	}

	if err := validateUpgrade(resp, nonce, d.Subprotocols); err != nil {
		// Capture what the server said, then make sure the socket cannot
		// leak back into use.
		if rej, ok := err.(*HandshakeRejectedError); ok && resp.Body != nil {
			rej.Body, _ = io.ReadAll(io.LimitReader(resp.Body, rejectBodyLimit))
		}
		_ = resp.Body.Close()
		_ = raw.Close()
		return nil, resp, err
	}
	_ = raw.SetDeadline(time.Time{})

	return newConn(raw, br, resp.Header.Get("Sec-Websocket-Protocol")), resp, nil
}

// DialWithClient upgrades using a Client's active profile, egress identity,
// and connector.
func DialWithClient(ctx context.Context, c *client.Client, rawURL string) (*Conn, *http.Response, error) {
	d := &Dialer{Connector: c.Connector()}
	return d.Dial(ctx, rawURL, c.Profile(), c.Egress(), nil)
}

// handshakeHeaders authors the upgrade header block in browser order.  The
// names use wire-standard capitalisation regardless of the profile's normal
// template: upgrade handshakes are HTTP/1-only and browsers send them cased
// this way even when their h2 requests are all-lowercase.
func (d *Dialer) handshakeHeaders(u *url.URL, prof *profile.Profile, nonce string, extra *client.OrderedHeader) *client.OrderedHeader {
	h := &client.OrderedHeader{}
	h.Add("Connection", "Upgrade")
	h.Add("Pragma", "no-cache")
	h.Add("Cache-Control", "no-cache")
	h.Add("User-Agent", prof.UserAgent())
	h.Add("Upgrade", "websocket")
	h.Add("Origin", originFor(u))
	h.Add("Sec-WebSocket-Version", "13")
	if v := profileDefault(prof, "accept-encoding"); v != "" {
		h.Add("Accept-Encoding", v)
	}
	if v := profileDefault(prof, "accept-language"); v != "" {
		h.Add("Accept-Language", v)
	}
	h.Add("Sec-WebSocket-Key", nonce)
	if len(d.Subprotocols) > 0 {
		h.Add("Sec-WebSocket-Protocol", strings.Join(d.Subprotocols, ", "))
	}
	if extra != nil {
		for _, e := range extra.Entries() {
			h.Set(e.Key, e.Value)
		}
	}
	return h
}

func profileDefault(prof *profile.Profile, name string) string {
	for _, d := range prof.DefaultHeaders {
		if strings.EqualFold(d.Name, name) {
			return d.Value
		}
	}
	return ""
}

func originFor(u *url.URL) string {
	scheme := "https"
	if u.Scheme == "ws" {
		scheme = "http"
	}
	return scheme + "://" + u.Host
}

// challengeKey produces the random 16-byte base64 nonce for
// Sec-WebSocket-Key.
func challengeKey() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("websocket: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}

// acceptKey derives the expected Sec-WebSocket-Accept for a client nonce.
func acceptKey(nonce string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, nonce)
	_, _ = io.WriteString(h, acceptGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// validateUpgrade checks the three RFC 6455 requirements on the 101
// response plus subprotocol agreement.
func validateUpgrade(resp *http.Response, nonce string, offered []string) error {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return &HandshakeRejectedError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
		}
	}
	if !strings.EqualFold(resp.Header.Get("Upgrade"), "websocket") {
		return rejected(resp, fmt.Sprintf("Upgrade header is %q, want websocket", resp.Header.Get("Upgrade")))
	}
	if !tokenListContains(resp.Header.Get("Connection"), "upgrade") {
		return rejected(resp, fmt.Sprintf("Connection header is %q, want Upgrade", resp.Header.Get("Connection")))
	}
	if got, want := resp.Header.Get("Sec-Websocket-Accept"), acceptKey(nonce); got != want {
		return rejected(resp, "Sec-WebSocket-Accept mismatch")
	}
	if proto := resp.Header.Get("Sec-Websocket-Protocol"); proto != "" {
		ok := false
		for _, p := range offered {
			if strings.EqualFold(p, proto) {
				ok = true
				break
			}
		}
		if !ok {
			return rejected(resp, fmt.Sprintf("server selected unoffered subprotocol %q", proto))
		}
	}
	return nil
}

func rejected(resp *http.Response, reason string) *HandshakeRejectedError {
	return &HandshakeRejectedError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Reason:     reason,
	}
}

func tokenListContains(headerValue, token string) bool {
	for _, part := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
