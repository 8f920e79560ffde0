package profile

import (
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Chrome131 is the catalog ID for Google Chrome 131 on Windows.
const Chrome131 = "chrome_131"

// chrome131 differs from chrome120 where Chrome itself changed between the
// two releases: zstd joins the accept-encoding list, the ClientHello grows
// the ECH GREASE extension, and the client-hint version strings move to 131.
// The SETTINGS frame shape is unchanged.
var chrome131 = &Profile{
	ID: Chrome131,

	TLS: TLSFingerprint{
		MinVersion:   utls.VersionTLS12,
		MaxVersion:   utls.VersionTLS13,
		CipherSuites: chrome120.TLS.CipherSuites,
		Curves: []utls.CurveID{
			utls.X25519,
			utls.CurveP256,
			utls.CurveP384,
		},
		KeyShares:           []utls.CurveID{utls.X25519},
		SignatureAlgorithms: chrome120.TLS.SignatureAlgorithms,
		ALPN:                []string{"h2", "http/1.1"},
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
			ExtECHGrease,
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

	HeaderOrder: chrome120.HeaderOrder,

	DefaultHeaders: []Header{
		{Name: "sec-ch-ua", Value: `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
		{Name: "sec-ch-ua-mobile", Value: "?0"},
		{Name: "sec-ch-ua-platform", Value: `"Windows"`},
		{Name: "upgrade-insecure-requests", Value: "1"},
		{Name: "user-agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"},
		{Name: "accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
		{Name: "sec-fetch-site", Value: "none"},
		{Name: "sec-fetch-mode", Value: "navigate"},
		{Name: "sec-fetch-user", Value: "?1"},
		{Name: "sec-fetch-dest", Value: "document"},
		{Name: "accept-encoding", Value: "gzip, deflate, br, zstd"},
		{Name: "accept-language", Value: "en-US,en;q=0.9"},
	},
}

func init() { register(chrome131) }
