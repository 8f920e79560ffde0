package profile

import (
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Chrome120 is the catalog ID for Google Chrome 120 on Windows.
const Chrome120 = "chrome_120"

// chrome120 reproduces a Windows Chrome 120 client as captured on the wire:
// GREASE in every list, brotli certificate compression, ALPS, and the
// four-parameter SETTINGS frame Chrome has sent since 120 (no
// MAX_CONCURRENT_STREAMS).  The connection window increment 15663105 and the
// exclusive weight-256 priority on stream 1 match Wireshark captures.
var chrome120 = &Profile{
	ID: Chrome120,

	TLS: TLSFingerprint{
		MinVersion: utls.VersionTLS12,
		MaxVersion: utls.VersionTLS13,
		CipherSuites: []uint16{
			utls.TLS_AES_128_GCM_SHA256,
			utls.TLS_AES_256_GCM_SHA384,
			utls.TLS_CHACHA20_POLY1305_SHA256,
			utls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			utls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			utls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			utls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			utls.TLS_RSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_RSA_WITH_AES_128_CBC_SHA,
			utls.TLS_RSA_WITH_AES_256_CBC_SHA,
		},
		Curves: []utls.CurveID{
			utls.X25519,
			utls.CurveP256,
			utls.CurveP384,
		},
		KeyShares: []utls.CurveID{utls.X25519},
		SignatureAlgorithms: []utls.SignatureScheme{
			utls.ECDSAWithP256AndSHA256,
			utls.PSSWithSHA256,
			utls.PKCS1WithSHA256,
			utls.ECDSAWithP384AndSHA384,
			utls.PSSWithSHA384,
			utls.PKCS1WithSHA384,
			utls.PSSWithSHA512,
			utls.PKCS1WithSHA512,
		},
		ALPN: []string{"h2", "http/1.1"},
		ExtensionOrder: []uint16{
			GREASEPlaceholder,
			ExtSNI,
			ExtExtendedMasterSecret,
			ExtRenegotiationInfo,
			ExtSupportedGroups,
			ExtECPointFormats,
			ExtSessionTicket,
			ExtALPN,
			ExtStatusRequest,
			ExtSignatureAlgorithms,
			ExtSCT,
			ExtKeyShare,
			ExtPSKModes,
			ExtSupportedVersions,
			ExtCompressCertificate,
			ExtApplicationSettings,
			GREASEPlaceholder,
			ExtPadding,
		},
		CertCompression: []utls.CertCompressionAlgo{utls.CertCompressionBrotli},
		SessionTickets:  true,
		GREASE:          true,
		SNI:             true,
	},

	HTTP2: HTTP2Fingerprint{
		Settings: []HTTP2Setting{
			{ID: http2.SettingHeaderTableSize, Val: 65536},
			{ID: http2.SettingEnablePush, Val: 0},
			{ID: http2.SettingInitialWindowSize, Val: 6291456},
			{ID: http2.SettingMaxHeaderListSize, Val: 262144},
		},
		ConnWindowUpdate:  15663105,
		PseudoHeaderOrder: []string{":method", ":authority", ":scheme", ":path"},
		PriorityDep:       0,
		PriorityWeight:    255,
		PriorityExclusive: true,
	},

	HeaderOrder: HeaderTemplate{
		Order: []string{
			"cache-control",
			"sec-ch-ua",
			"sec-ch-ua-mobile",
			"sec-ch-ua-platform",
			"upgrade-insecure-requests",
			"user-agent",
			"accept",
			"sec-fetch-site",
			"sec-fetch-mode",
			"sec-fetch-user",
			"sec-fetch-dest",
			"accept-encoding",
			"accept-language",
			"cookie",
		},
	},

	DefaultHeaders: []Header{
		{Name: "sec-ch-ua", Value: `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`},
		{Name: "sec-ch-ua-mobile", Value: "?0"},
		{Name: "sec-ch-ua-platform", Value: `"Windows"`},
		{Name: "upgrade-insecure-requests", Value: "1"},
		{Name: "user-agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
		{Name: "accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
		{Name: "sec-fetch-site", Value: "none"},
		{Name: "sec-fetch-mode", Value: "navigate"},
		{Name: "sec-fetch-user", Value: "?1"},
		{Name: "sec-fetch-dest", Value: "document"},
		{Name: "accept-encoding", Value: "gzip, deflate, br"},
		{Name: "accept-language", Value: "en-US,en;q=0.9"},
	},
}

func init() { register(chrome120) }
