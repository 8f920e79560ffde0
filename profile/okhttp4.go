package profile

import (
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// OkHttp4 is the catalog ID for OkHttp 4.x (Android).
const OkHttp4 = "okhttp_4"

// okhttp4 models the much plainer OkHttp client: a short cipher list, no
// GREASE, no certificate compression, a minimal extension set, and a 16 MiB
// stream window with no SETTINGS beyond what OkHttp actually sends.
var okhttp4 = &Profile{
	ID: OkHttp4,

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
			utls.TLS_RSA_WITH_AES_128_GCM_SHA256,
			utls.TLS_RSA_WITH_AES_256_GCM_SHA384,
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
			ExtSignatureAlgorithms,
			ExtSupportedVersions,
			ExtPSKModes,
			ExtKeyShare,
		},
		SessionTickets: true,
		GREASE:         false,
		SNI:            true,
	},

	HTTP2: HTTP2Fingerprint{
		Settings: []HTTP2Setting{
			{ID: http2.SettingHeaderTableSize, Val: 4096},
			{ID: http2.SettingInitialWindowSize, Val: 16777216},
		},
		ConnWindowUpdate:  16711681,
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		PriorityDep:       0,
		PriorityWeight:    0,
		PriorityExclusive: false,
	},

	HeaderOrder: HeaderTemplate{
		Order: []string{
			"user-agent",
			"accept-encoding",
			"cookie",
		},
	},

	DefaultHeaders: []Header{
		{Name: "user-agent", Value: "okhttp/4.12.0"},
		{Name: "accept-encoding", Value: "gzip"},
	},
}

func init() { register(okhttp4) }
