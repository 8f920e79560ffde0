// Package profile holds the static catalog of browser emulation profiles.
//
// A Profile bundles every client-side negotiation detail that anti-bot
// systems fingerprint: the TLS ClientHello shape (cipher-suite order,
// supported-group order, extension permutation, ALPN order), the HTTP/2
// SETTINGS frame contents and order, the pseudo-header order, and the
// default request-header template with its exact casing and ordering.
//
// Profiles are immutable compile-time data.  They are registered once from
// package init functions (one file per captured browser build) and shared by
// pointer across every client that uses them; nothing in this package
// performs I/O or mutation after initialisation.
package profile

import (
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// GREASEPlaceholder marks a GREASE extension position inside
// TLSFingerprint.ExtensionOrder.  The TLS connector factory replaces each
// occurrence with a randomised GREASE extension, mirroring how Chrome pads
// its ClientHello.
const GREASEPlaceholder uint16 = 0x0a0a

// TLSFingerprint describes the exact ClientHello a profile emits.
//
// All slices are ordered and the order is semantically significant: the
// factory applies cipher suites, curves, signature algorithms, ALPN
// protocols, and extensions verbatim in the sequence authored here.  The
// fields use uTLS scalar types so catalog entries translate directly into a
// utls.ClientHelloSpec without lookup tables.
type TLSFingerprint struct {
	// MinVersion and MaxVersion bound the negotiated protocol version
	// (e.g. tls.VersionTLS12 .. tls.VersionTLS13).
	MinVersion uint16
	MaxVersion uint16

	// CipherSuites lists cipher suite IDs in wire order.  A leading GREASE
	// value is NOT included here; set GREASE instead and the factory
	// prepends it.
	CipherSuites []uint16

	// Curves is the supported_groups extension content, in order.
	Curves []utls.CurveID

	// KeyShares lists the groups for which the client sends key material in
	// the key_share extension.  Must be a prefix-compatible subset of
	// Curves.
	KeyShares []utls.CurveID

	// SignatureAlgorithms is the signature_algorithms extension content.
	SignatureAlgorithms []utls.SignatureScheme

	// ALPN lists application protocols in preference order.  The first
	// entry decides the protocol class used for connection pooling
	// ("h2" pools as HTTP/2, anything else as HTTP/1).
	ALPN []string

	// ExtensionOrder is the ClientHello extension permutation by IANA
	// extension ID.  GREASEPlaceholder entries mark GREASE positions.
	// Extension IDs that carry a body (supported_groups, ALPN, …) are
	// populated from the fields above.
	ExtensionOrder []uint16

	// CertCompression lists certificate-compression algorithms advertised
	// in the compress_certificate extension (extension ID 27).  Ignored
	// when 27 is absent from ExtensionOrder.
	CertCompression []utls.CertCompressionAlgo

	// SessionTickets enables the session_ticket extension (ID 35) and
	// session resumption.
	SessionTickets bool

	// GREASE enables GREASE values in the cipher list, supported groups,
	// supported versions, and key shares, in addition to the explicit
	// GREASEPlaceholder extension positions.
	GREASE bool

	// SNI controls whether the server_name extension is sent at all.
	SNI bool
}

// HTTP2Setting is one ordered (parameter-id, value) pair of the SETTINGS
// frame.  A slice of these — not a map — preserves the authored order on the
// wire.
type HTTP2Setting struct {
	ID  http2.SettingID
	Val uint32
}

// HTTP2Fingerprint describes the HTTP/2 connection preface a profile emits.
type HTTP2Fingerprint struct {
	// Settings is the SETTINGS frame content in authored order.  Duplicate
	// parameter IDs are rejected by the negotiator.
	Settings []HTTP2Setting

	// ConnWindowUpdate is the connection-level WINDOW_UPDATE increment sent
	// immediately after the client preface (0 = none).
	ConnWindowUpdate uint32

	// PseudoHeaderOrder lists ":method", ":authority", ":scheme", ":path"
	// in the order the browser writes them into the HEADERS frame.
	PseudoHeaderOrder []string

	// Priority describes the stream dependency attached to the initial
	// HEADERS frame.
	PriorityDep       uint32
	PriorityWeight    uint8
	PriorityExclusive bool
}

// HeaderTemplate is an ordered list of header names used purely as an
// ordering key: headers named here are emitted first, in this order, with
// this casing; everything else follows in caller insertion order.
type HeaderTemplate struct {
	// Order holds header names in emission order, written with the casing
	// the browser uses on the wire.
	Order []string

	// PreserveCase keeps the caller's casing for headers that appear in
	// Order instead of rewriting them to the template's casing.
	PreserveCase bool
}

// Header is a single default request header with its exact wire casing.
type Header struct {
	Name  string
	Value string
}

// Profile is one immutable emulation profile.  Instances live for the whole
// process and are shared by pointer; never mutate a Profile after
// registration.
type Profile struct {
	// ID is the catalog key, e.g. "chrome_120".
	ID string

	TLS   TLSFingerprint
	HTTP2 HTTP2Fingerprint

	// HeaderOrder is the per-profile header ordering template.
	HeaderOrder HeaderTemplate

	// DefaultHeaders are the browser's navigation headers in wire order.
	// Callers overlay their own headers on top; defaults never clobber an
	// explicitly set header.
	DefaultHeaders []Header
}

// ProtoClass reports the connection-pool protocol class this profile
// requests: "h2" first in ALPN means HTTP/2, anything else HTTP/1.
func (p *Profile) ProtoClass() string {
	if len(p.TLS.ALPN) > 0 && p.TLS.ALPN[0] == "h2" {
		return "h2"
	}
	return "http/1.1"
}

// UserAgent returns the profile's default User-Agent value, or "" if the
// profile does not carry one.
func (p *Profile) UserAgent() string {
	for _, h := range p.DefaultHeaders {
		if h.Name == "User-Agent" || h.Name == "user-agent" {
			return h.Value
		}
	}
	return ""
}
