package envelope

// Fixed byte tables required to interoperate with the Service. These are
// shipped verbatim from the upstream client and must not be re-derived.

// rsaModulusHex and rsaExponent are the Service's fixed RSA public key,
// used only for the download-URL negotiation envelope (see rsa.go).
const rsaExponent = 0x10001

var rsaModulusHex = "" +
	"8686980c0f5a24c4b9d43020cd2c22703ff3f450756529058b1cf88f09b8602136477198a6e2683149659" +
	"bd122c33592fdb5ad47944ad1ea4d36c6b172aad6338c3bb6ac6227502d010993ac967d1aef00f0c8e038d" +
	"e2e4d3bc2ec368af2e9f10a6f1eda4f7262f136420c07c331b871bf139f74f3010e3c4fe57df3afb71683"

// gKTS is the 144-byte scramble table used by gen_key. Verbatim from the
// upstream implementation.
var gKTS = []byte{
	0xf0, 0xe5, 0x69, 0xae, 0xbf, 0xdc, 0xbf, 0x8a, 0x1a, 0x45, 0xe8, 0xbe, 0x7d, 0xa6, 0x73, 0xb8,
	0xde, 0x8f, 0xe7, 0xc4, 0x45, 0xda, 0x86, 0xc4, 0x9b, 0x64, 0x8b, 0x14, 0x6a, 0xb4, 0xf1, 0xaa,
	0x38, 0x01, 0x35, 0x9e, 0x26, 0x69, 0x2c, 0x86, 0x00, 0x6b, 0x4f, 0xa5, 0x36, 0x34, 0x62, 0xa6,
	0x2a, 0x96, 0x68, 0x18, 0xf2, 0x4a, 0xfd, 0xbd, 0x6b, 0x97, 0x8f, 0x4d, 0x8f, 0x89, 0x13, 0xb7,
	0x6c, 0x8e, 0x93, 0xed, 0x0e, 0x0d, 0x48, 0x3e, 0xd7, 0x2f, 0x88, 0xd8, 0xfe, 0xfe, 0x7e, 0x86,
	0x50, 0x95, 0x4f, 0xd1, 0xeb, 0x83, 0x26, 0x34, 0xdb, 0x66, 0x7b, 0x9c, 0x7e, 0x9d, 0x7a, 0x81,
	0x32, 0xea, 0xb6, 0x33, 0xde, 0x3a, 0xa9, 0x59, 0x34, 0x66, 0x3b, 0xaa, 0xba, 0x81, 0x60, 0x48,
	0xb9, 0xd5, 0x81, 0x9c, 0xf8, 0x6c, 0x84, 0x77, 0xff, 0x54, 0x78, 0x26, 0x5f, 0xbe, 0xe8, 0x1e,
	0x36, 0x9f, 0x34, 0x80, 0x5c, 0x45, 0x2c, 0x9b, 0x76, 0xd5, 0x1b, 0x8f, 0xcc, 0xc3, 0xb8, 0xf5,
}

// gKeyL and gKeyS are the RSA envelope's two fixed XOR keys.
var (
	gKeyL = []byte{0x78, 0x06, 0xad, 0x4c, 0x33, 0x86, 0x5d, 0x18, 0x4c, 0x01, 0x3f, 0x46}
	gKeyS = []byte{0x29, 0x23, 0x21, 0x5e}
)

// crcSalt is prepended before computing the CRC32 check in encode_token.
var crcSalt = []byte("^j>WD3Kr?J2gLFjD4W2y@")

// ecdhRemotePubKey is the Service's fixed 56-byte P-224 public key used to
// derive the shared secret for the upload-init envelope.
var ecdhRemotePubKey = []byte{
	0x57, 0xa2, 0x92, 0x57, 0xcd, 0x23, 0x20, 0xe5, 0xd6, 0xd1, 0x43, 0x32, 0x2f, 0xa4, 0xbb, 0x8a,
	0x3c, 0xf9, 0xd3, 0xcc, 0x62, 0x3e, 0xf5, 0xed, 0xac, 0x62, 0xb7, 0x67, 0x8a, 0x89, 0xc9, 0x1a,
	0x83, 0xba, 0x80, 0x0d, 0x61, 0x29, 0xf5, 0x22, 0xd0, 0x34, 0xc8, 0x95, 0xdd, 0x24, 0x65, 0x24,
	0x3a, 0xdd, 0xc2, 0x50, 0x95, 0x3b, 0xee, 0xba,
}

// md5Salt seeds the upload-init token hash (see token.go).
var md5Salt = []byte("Qclm8MGWUv59TnrR0XPg")

// appVersion is the app-version string the upload-init token folds in
// and the upload-init form sends as "appversion". The transport's
// User-Agent carries its own, separate version tag.
const appVersion = "99.99.99.99"

// AppVersion exposes the fixed app-version tag to callers outside this
// package (the upload-init token and "appversion" form field need it).
func AppVersion() string { return appVersion }

// MD5Salt exposes the fixed upload-init token salt.
func MD5Salt() string { return string(md5Salt) }
