package profile

import (
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Safari17 is the catalog ID for Safari 17 on macOS.
const Safari17 = "safari_17"

// safari17 mirrors WebKit's negotiation on macOS Sonoma: GREASE like Chrome
// but zlib certificate compression, the small 4096-octet header table, an
// explicit MAX_CONCURRENT_STREAMS of 100, and a 2 MiB stream window.
var safari17 = &Profile{
	ID: Safari17,

	TLS: TLSFingerprint{
		MinVersion: utls.VersionTLS12,
		MaxVersion: utls.VersionTLS13,
		CipherSuites: []uint16{
			utls.TLS_AES_128_GCM_SHA256,
			utls.TLS_AES_256_GCM_SHA384,
			utls.TLS_CHACHA20_POLY1305_SHA256,
			utls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			utls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			utls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
			utls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
			utls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			utls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			utls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_RSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_RSA_WITH_AES_256_CBC_SHA,
			utls.TLS_RSA_WITH_AES_128_CBC_SHA,
		},
		Curves: []utls.CurveID{
			utls.X25519,
			utls.CurveP256,
			utls.CurveP384,
			utls.CurveP521,
		},
		KeyShares: []utls.CurveID{utls.X25519},
		SignatureAlgorithms: []utls.SignatureScheme{
			utls.ECDSAWithP256AndSHA256,
			utls.PSSWithSHA256,
			utls.PKCS1WithSHA256,
			utls.ECDSAWithP384AndSHA384,
			utls.ECDSAWithSHA1,
			utls.PSSWithSHA384,
			utls.PKCS1WithSHA384,
			utls.PSSWithSHA512,
			utls.PKCS1WithSHA512,
			utls.PKCS1WithSHA1,
		},
		ALPN: []string{"h2", "http/1.1"},
		ExtensionOrder: []uint16{
			GREASEPlaceholder,
			ExtSNI,
			ExtExtendedMasterSecret,
			ExtRenegotiationInfo,
			ExtSupportedGroups,
			ExtECPointFormats,
			ExtALPN,
			ExtStatusRequest,
			ExtSignatureAlgorithms,
			ExtSCT,
			ExtKeyShare,
			ExtPSKModes,
			ExtSupportedVersions,
			ExtCompressCertificate,
			GREASEPlaceholder,
			ExtPadding,
		},
		CertCompression: []utls.CertCompressionAlgo{utls.CertCompressionZlib},
		SessionTickets:  false,
		GREASE:          true,
		SNI:             true,
	},

	HTTP2: HTTP2Fingerprint{
		Settings: []HTTP2Setting{
			{ID: http2.SettingHeaderTableSize, Val: 4096},
			{ID: http2.SettingMaxConcurrentStreams, Val: 100},
			{ID: http2.SettingInitialWindowSize, Val: 2097152},
		},
		ConnWindowUpdate:  10485760,
		PseudoHeaderOrder: []string{":method", ":scheme", ":path", ":authority"},
		PriorityDep:       0,
		PriorityWeight:    254,
		PriorityExclusive: false,
	},

	HeaderOrder: HeaderTemplate{
		Order: []string{
			"sec-fetch-dest",
			"user-agent",
			"accept",
			"sec-fetch-site",
			"sec-fetch-mode",
			"accept-language",
			"accept-encoding",
			"cookie",
		},
	},

	DefaultHeaders: []Header{
		{Name: "sec-fetch-dest", Value: "document"},
		{Name: "user-agent", Value: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"},
		{Name: "accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		{Name: "sec-fetch-site", Value: "none"},
		{Name: "sec-fetch-mode", Value: "navigate"},
		{Name: "accept-language", Value: "en-US,en;q=0.9"},
		{Name: "accept-encoding", Value: "gzip, deflate, br"},
	},
}

func init() { register(safari17) }
