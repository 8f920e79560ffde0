package client

import (
	"errors"
	"fmt"
)

// ConnectStage identifies how far connection establishment progressed before
// failing.  The stage is carried inside ConnectError so an external retry
// policy can distinguish, say, a DNS failure from a TLS handshake rejection.
type ConnectStage int

const (
	// StageResolving covers DNS resolution of the destination or proxy.
	StageResolving ConnectStage = iota
	// StageConnecting covers the TCP connect and, when an egress proxy is
	// configured, the CONNECT tunnel exchange.
	StageConnecting
	// StageTLSHandshake covers the uTLS handshake.
	StageTLSHandshake
	// StageProtocolNegotiation covers ALPN dispatch and the HTTP/2
	// connection preface.
	StageProtocolNegotiation
)

// String returns the stage name used in error messages and logs.
func (s ConnectStage) String() string {
	switch s {
	case StageResolving:
		return "resolving"
	case StageConnecting:
		return "connecting"
	case StageTLSHandshake:
		return "tls-handshake"
	case StageProtocolNegotiation:
		return "protocol-negotiation"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ConnectError is the per-request failure surfaced by the connector and the
// pool.  The pool never retries; it reports the stage reached and the
// underlying cause and leaves the retry decision to the caller.
type ConnectError struct {
	Stage ConnectStage
	Addr  string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s: %v", e.Addr, e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// connectErr wraps err with stage and address context unless it already is a
// ConnectError.
func connectErr(stage ConnectStage, addr string, err error) error {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectError{Stage: stage, Addr: addr, Err: err}
}

// TLSConfigError reports a fingerprint descriptor the underlying TLS library
// rejected at build time.  Catalog entries should never trigger this in
// production; seeing one indicates a catalog/library version mismatch.
type TLSConfigError struct {
	Reason string
	Err    error
}

func (e *TLSConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tls config: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("tls config: %s", e.Reason)
}

func (e *TLSConfigError) Unwrap() error { return e.Err }

// InvalidSettingsError reports an HTTP/2 fingerprint value outside the
// protocol's legal range or a duplicated SETTINGS parameter.  Values are
// never silently clamped.
type InvalidSettingsError struct {
	Param  string
	Reason string
}

func (e *InvalidSettingsError) Error() string {
	return fmt.Sprintf("http2 settings: %s: %s", e.Param, e.Reason)
}

// ErrPoolClosed is returned by Acquire after the pool has been shut down.
var ErrPoolClosed = errors.New("client: connection pool closed")
