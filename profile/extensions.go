package profile

// IANA TLS extension IDs used in TLSFingerprint.ExtensionOrder.  The TLS
// connector factory maps each ID to the corresponding uTLS extension value;
// catalog files author the ClientHello permutation with these names.
const (
	ExtSNI                  uint16 = 0
	ExtStatusRequest        uint16 = 5
	ExtSupportedGroups      uint16 = 10
	ExtECPointFormats       uint16 = 11
	ExtSignatureAlgorithms  uint16 = 13
	ExtALPN                 uint16 = 16
	ExtSCT                  uint16 = 18
	ExtPadding              uint16 = 21
	ExtExtendedMasterSecret uint16 = 23
	ExtCompressCertificate  uint16 = 27
	ExtRecordSizeLimit      uint16 = 28
	ExtDelegatedCredentials uint16 = 34
	ExtSessionTicket        uint16 = 35
	ExtSupportedVersions    uint16 = 43
	ExtPSKModes             uint16 = 45
	ExtKeyShare             uint16 = 51
	ExtApplicationSettings  uint16 = 17513
	ExtECHGrease            uint16 = 65037
	ExtRenegotiationInfo    uint16 = 65281
)
