package profile

import (
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Firefox133 is the catalog ID for Mozilla Firefox 133 on Windows.
const Firefox133 = "firefox_133"

// firefox133 captures Firefox's distinctly non-Chrome negotiation: no GREASE
// anywhere, delegated_credentials and record_size_limit extensions, a
// three-parameter SETTINGS frame that still enables server push, and
// pseudo-headers written :method :path :authority :scheme.
var firefox133 = &Profile{
	ID: Firefox133,

	TLS: TLSFingerprint{
		MinVersion: utls.VersionTLS12,
		MaxVersion: utls.VersionTLS13,
		CipherSuites: []uint16{
			utls.TLS_AES_128_GCM_SHA256,
			utls.TLS_CHACHA20_POLY1305_SHA256,
			utls.TLS_AES_256_GCM_SHA384,
			utls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			utls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			utls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			utls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
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
			utls.CurveP521,
		},
		KeyShares: []utls.CurveID{utls.X25519, utls.CurveP256},
		SignatureAlgorithms: []utls.SignatureScheme{
			utls.ECDSAWithP256AndSHA256,
			utls.ECDSAWithP384AndSHA384,
			utls.ECDSAWithP521AndSHA512,
			utls.PSSWithSHA256,
			utls.PSSWithSHA384,
			utls.PSSWithSHA512,
			utls.PKCS1WithSHA256,
			utls.PKCS1WithSHA384,
			utls.PKCS1WithSHA512,
			utls.ECDSAWithSHA1,
			utls.PKCS1WithSHA1,
		},
		ALPN: []string{"h2", "http/1.1"},
		ExtensionOrder: []uint16{
			ExtSNI,
			ExtExtendedMasterSecret,
			ExtRenegotiationInfo,
			ExtSupportedGroups,
			ExtECPointFormats,
			ExtSessionTicket,
			ExtALPN,
			ExtStatusRequest,
			ExtDelegatedCredentials,
			ExtKeyShare,
			ExtSupportedVersions,
			ExtSignatureAlgorithms,
			ExtPSKModes,
			ExtRecordSizeLimit,
		},
		SessionTickets: true,
		GREASE:         false,
		SNI:            true,
	},

	HTTP2: HTTP2Fingerprint{
		Settings: []HTTP2Setting{
			{ID: http2.SettingHeaderTableSize, Val: 65536},
			{ID: http2.SettingInitialWindowSize, Val: 131072},
			{ID: http2.SettingMaxFrameSize, Val: 16384},
		},
		ConnWindowUpdate:  12517377,
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		PriorityDep:       0,
		PriorityWeight:    41,
		PriorityExclusive: false,
	},

	HeaderOrder: HeaderTemplate{
		Order: []string{
			"user-agent",
			"accept",
			"accept-language",
			"accept-encoding",
			"upgrade-insecure-requests",
			"sec-fetch-dest",
			"sec-fetch-mode",
			"sec-fetch-site",
			"sec-fetch-user",
			"cookie",
		},
		// Firefox capitalises headers HTTP/1-style (User-Agent) even over
		// h2-to-lowercase translation; callers that need the HTTP/1 casing
		// author the template in that form per-request.
		PreserveCase: true,
	},

	DefaultHeaders: []Header{
		{Name: "User-Agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0"},
		{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,png,image/svg+xml,*/*;q=0.8"},
		{Name: "Accept-Language", Value: "en-US,en;q=0.5"},
		{Name: "Accept-Encoding", Value: "gzip, deflate, br, zstd"},
		{Name: "Upgrade-Insecure-Requests", Value: "1"},
		{Name: "Sec-Fetch-Dest", Value: "document"},
		{Name: "Sec-Fetch-Mode", Value: "navigate"},
		{Name: "Sec-Fetch-Site", Value: "none"},
		{Name: "Sec-Fetch-User", Value: "?1"},
	},
}

func init() { register(firefox133) }
