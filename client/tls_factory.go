package client

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	utls "github.com/refraction-networking/utls"

	"github.com/cloakhttp/cloak/profile"
)

// CertStore supplies the root-of-trust bundle for server certificate
// verification.  It is treated as opaque, pre-validated input: loading and
// parsing certificates is the caller's one-time startup cost.
type CertStore struct {
	// Roots is the CA pool; nil falls back to the system pool.
	Roots *x509.CertPool

	// InsecureSkipVerify disables verification entirely.  Test servers
	// only.
	InsecureSkipVerify bool
}

// TLSConnectorConfig is the reusable product of the factory: a validated
// fingerprint plus certificate store, able to wrap raw connections with a
// uTLS handshake that reproduces the fingerprint byte-for-byte.  Configs are
// shared across every connection built from the same fingerprint; building
// one is the expensive step and must not happen per request.
type TLSConnectorConfig struct {
	fp    *profile.TLSFingerprint
	store *CertStore
}

// Fingerprint returns the descriptor this config was built from.
func (c *TLSConnectorConfig) Fingerprint() *profile.TLSFingerprint { return c.fp }

// Spec materialises a fresh ClientHelloSpec.  A new spec is produced per
// handshake because uTLS extension values carry per-connection state
// (GREASE randomisation, key share material).
func (c *TLSConnectorConfig) Spec() (utls.ClientHelloSpec, error) {
	return buildClientHelloSpec(c.fp)
}

// Client wraps an established raw connection in a uTLS client configured
// with this fingerprint and performs the handshake.  On failure the raw
// connection is closed.
func (c *TLSConnectorConfig) Client(ctx context.Context, raw net.Conn, sni string) (*utls.UConn, error) {
	spec, err := c.Spec()
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	uCfg := &utls.Config{
		ServerName:         sni,
		RootCAs:            c.store.Roots,
		InsecureSkipVerify: c.store.InsecureSkipVerify, // #nosec G402 – caller-controlled
	}
	if !c.fp.SessionTickets {
		uCfg.SessionTicketsDisabled = true
	}

	uConn := utls.UClient(raw, uCfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		_ = raw.Close()
		return nil, &TLSConfigError{Reason: "apply ClientHello preset", Err: err}
	}
	if err := uConn.HandshakeContext(ctx); err != nil {
		_ = uConn.Close()
		return nil, err
	}
	return uConn, nil
}

// TLSFactory builds and caches TLSConnectorConfig values.
//
// The cache is keyed by the fingerprint's structural value (not pointer
// identity) plus the cert store, so rebuilding an identical fingerprint
// reuses the prior config.  Capacity is deliberately tiny: the cache exists
// to bound memory under profile churn, not to behave as a general cache —
// real deployments use a handful of profiles.
type TLSFactory struct {
	cache *lru.Cache[string, *TLSConnectorConfig]
}

// DefaultTLSCacheSize bounds the factory cache.  Eight distinct fingerprints
// in rotation covers every realistic profile-switching pattern.
const DefaultTLSCacheSize = 8

// NewTLSFactory creates a factory whose cache holds up to capacity configs,
// evicting least-recently-used entries beyond that.
func NewTLSFactory(capacity int) *TLSFactory {
	if capacity <= 0 {
		capacity = DefaultTLSCacheSize
	}
	// lru.New only fails for capacity <= 0, which is excluded above.
	c, err := lru.New[string, *TLSConnectorConfig](capacity)
	if err != nil {
		panic(err)
	}
	return &TLSFactory{cache: c}
}

// Build returns the connector config for fp, constructing and validating it
// on first use.  A fingerprint the underlying TLS library rejects surfaces
// as TLSConfigError; the rejection is reported, never silently dropped.
func (f *TLSFactory) Build(fp *profile.TLSFingerprint, store *CertStore) (*TLSConnectorConfig, error) {
	if fp == nil {
		return nil, &TLSConfigError{Reason: "nil fingerprint"}
	}
	if store == nil {
		store = &CertStore{}
	}

	key := fingerprintKey(fp, store)
	if cfg, ok := f.cache.Get(key); ok {
		return cfg, nil
	}

	// Validate eagerly: materialising the spec once catches unsupported
	// extension IDs and malformed combinations at build time instead of on
	// the first dial.
	if _, err := buildClientHelloSpec(fp); err != nil {
		return nil, err
	}

	cfg := &TLSConnectorConfig{fp: fp, store: store}
	f.cache.Add(key, cfg)
	return cfg, nil
}

// Len reports the number of cached configs (test hook).
func (f *TLSFactory) Len() int { return f.cache.Len() }

// fingerprintKey derives the cache key from every order-significant field of
// the fingerprint and the identity of the cert store.
func fingerprintKey(fp *profile.TLSFingerprint, store *CertStore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "v%d-%d|", fp.MinVersion, fp.MaxVersion)
	for _, c := range fp.CipherSuites {
		b.WriteString(strconv.FormatUint(uint64(c), 16))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, c := range fp.Curves {
		b.WriteString(strconv.FormatUint(uint64(c), 16))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, c := range fp.KeyShares {
		b.WriteString(strconv.FormatUint(uint64(c), 16))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, s := range fp.SignatureAlgorithms {
		b.WriteString(strconv.FormatUint(uint64(s), 16))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(fp.ALPN, ","))
	b.WriteByte('|')
	for _, e := range fp.ExtensionOrder {
		b.WriteString(strconv.FormatUint(uint64(e), 10))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, a := range fp.CertCompression {
		b.WriteString(strconv.FormatUint(uint64(a), 10))
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "|t%v g%v s%v|store%p-%v", fp.SessionTickets, fp.GREASE, fp.SNI, store.Roots, store.InsecureSkipVerify)
	return b.String()
}

// buildClientHelloSpec translates the fingerprint into a uTLS spec,
// preserving every authored order: (1) protocol version bounds, (2) cipher
// order verbatim, (3) curve order verbatim, (4) extension permutation
// including GREASE positions, (5) ALPN order verbatim.
func buildClientHelloSpec(fp *profile.TLSFingerprint) (utls.ClientHelloSpec, error) {
	spec := utls.ClientHelloSpec{
		TLSVersMin:         fp.MinVersion,
		TLSVersMax:         fp.MaxVersion,
		CompressionMethods: []byte{0x00},
	}

	spec.CipherSuites = make([]uint16, 0, len(fp.CipherSuites)+1)
	if fp.GREASE {
		spec.CipherSuites = append(spec.CipherSuites, utls.GREASE_PLACEHOLDER)
	}
	spec.CipherSuites = append(spec.CipherSuites, fp.CipherSuites...)

	spec.Extensions = make([]utls.TLSExtension, 0, len(fp.ExtensionOrder))
	for _, id := range fp.ExtensionOrder {
		ext, err := extensionForID(id, fp)
		if err != nil {
			return utls.ClientHelloSpec{}, err
		}
		if ext != nil {
			spec.Extensions = append(spec.Extensions, ext)
		}
	}
	return spec, nil
}

// extensionForID maps one authored extension ID to its uTLS value.  A nil,
// nil return means the extension is disabled by a fingerprint flag (SNI off)
// and is skipped without disturbing the rest of the permutation.
func extensionForID(id uint16, fp *profile.TLSFingerprint) (utls.TLSExtension, error) {
	switch id {
	case profile.GREASEPlaceholder:
		return &utls.UtlsGREASEExtension{}, nil
	case profile.ExtSNI:
		if !fp.SNI {
			return nil, nil
		}
		return &utls.SNIExtension{}, nil
	case profile.ExtStatusRequest:
		return &utls.StatusRequestExtension{}, nil
	case profile.ExtSupportedGroups:
		curves := make([]utls.CurveID, 0, len(fp.Curves)+1)
		if fp.GREASE {
			curves = append(curves, utls.CurveID(utls.GREASE_PLACEHOLDER))
		}
		curves = append(curves, fp.Curves...)
		return &utls.SupportedCurvesExtension{Curves: curves}, nil
	case profile.ExtECPointFormats:
		return &utls.SupportedPointsExtension{SupportedPoints: []byte{0x00}}, nil
	case profile.ExtSignatureAlgorithms:
		return &utls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: fp.SignatureAlgorithms}, nil
	case profile.ExtALPN:
		if len(fp.ALPN) == 0 {
			return nil, &TLSConfigError{Reason: "ALPN extension ordered but protocol list empty"}
		}
		return &utls.ALPNExtension{AlpnProtocols: fp.ALPN}, nil
	case profile.ExtSCT:
		return &utls.SCTExtension{}, nil
	case profile.ExtPadding:
		return &utls.UtlsPaddingExtension{GetPaddingLen: utls.BoringPaddingStyle}, nil
	case profile.ExtExtendedMasterSecret:
		return &utls.ExtendedMasterSecretExtension{}, nil
	case profile.ExtCompressCertificate:
		if len(fp.CertCompression) == 0 {
			return nil, &TLSConfigError{Reason: "compress_certificate ordered but algorithm list empty"}
		}
		return &utls.UtlsCompressCertExtension{Algorithms: fp.CertCompression}, nil
	case profile.ExtRecordSizeLimit:
		return &utls.FakeRecordSizeLimitExtension{Limit: 0x4001}, nil
	case profile.ExtDelegatedCredentials:
		return &utls.FakeDelegatedCredentialsExtension{SupportedSignatureAlgorithms: fp.SignatureAlgorithms}, nil
	case profile.ExtSessionTicket:
		if !fp.SessionTickets {
			return nil, nil
		}
		return &utls.SessionTicketExtension{}, nil
	case profile.ExtSupportedVersions:
		versions := make([]uint16, 0, 3)
		if fp.GREASE {
			versions = append(versions, utls.GREASE_PLACEHOLDER)
		}
		for v := fp.MaxVersion; v >= fp.MinVersion; v-- {
			versions = append(versions, v)
		}
		return &utls.SupportedVersionsExtension{Versions: versions}, nil
	case profile.ExtPSKModes:
		return &utls.PSKKeyExchangeModesExtension{Modes: []uint8{utls.PskModeDHE}}, nil
	case profile.ExtKeyShare:
		shares := make([]utls.KeyShare, 0, len(fp.KeyShares)+1)
		if fp.GREASE {
			shares = append(shares, utls.KeyShare{Group: utls.CurveID(utls.GREASE_PLACEHOLDER), Data: []byte{0}})
		}
		for _, g := range fp.KeyShares {
			shares = append(shares, utls.KeyShare{Group: g})
		}
		return &utls.KeyShareExtension{KeyShares: shares}, nil
	case profile.ExtApplicationSettings:
		return &utls.ApplicationSettingsExtension{SupportedProtocols: []string{"h2"}}, nil
	case profile.ExtECHGrease:
		return &utls.GREASEEncryptedClientHelloExtension{}, nil
	case profile.ExtRenegotiationInfo:
		return &utls.RenegotiationInfoExtension{Renegotiation: utls.RenegotiateOnceAsClient}, nil
	default:
		return nil, &TLSConfigError{Reason: fmt.Sprintf("unsupported extension id %d", id)}
	}
}
