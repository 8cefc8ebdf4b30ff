package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFixedTablesAreByteExact pins the constants copied verbatim from
// the upstream client. These feed directly into the RSA/ECDH envelopes
// and the upload-init token; a single wrong byte silently produces a
// request the Service rejects, with no local symptom to catch it.
func TestFixedTablesAreByteExact(t *testing.T) {
	assert.Equal(t, 144, len(gKTS))
	assert.Equal(t, byte(0xf0), gKTS[0])
	assert.Equal(t, byte(0xb8), gKTS[15])
	assert.Equal(t, byte(0xf5), gKTS[143])

	assert.Equal(t, 56, len(ecdhRemotePubKey))
	assert.Equal(t, byte(0x57), ecdhRemotePubKey[0])
	assert.Equal(t, byte(0xa2), ecdhRemotePubKey[1])
	assert.Equal(t, byte(0xba), ecdhRemotePubKey[55])

	assert.Equal(t, "^j>WD3Kr?J2gLFjD4W2y@", string(crcSalt))
	assert.Equal(t, "99.99.99.99", appVersion)

	assert.Equal(t, 256, len(rsaModulusHex))
	assert.Equal(t, "8686980c0f5a24c4b9d43020cd2c22703ff3f450756529058b1cf88f09b8602136477198a6e2683149659bd1", rsaModulusHex[:88])
}

// TestGenKeyMatchesUpstreamVector pins gen_key's index arithmetic
// against a hand-computed vector, so a future edit can't silently swap
// the addition/xor table offsets again.
func TestGenKeyMatchesUpstreamVector(t *testing.T) {
	randKey := []byte{1, 2, 3, 4}
	got := genKey(randKey, 4)

	// i=0: gKTS[12] ^ (1+gKTS[0]);  i=1: gKTS[8] ^ (2+gKTS[4]);
	// i=2: gKTS[4] ^ (3+gKTS[8]);   i=3: gKTS[0] ^ (4+gKTS[12]).
	want := []byte{0x8c, 0xdb, 0xa2, 0x71}
	assert.Equal(t, want, got)
}

// TestXorStreamPadsByFourRegardlessOfKeyLength pins xor's fixed mod-4
// prefix split, which is independent of the key's own length (the
// upstream implementation hardcodes 4, not len(key)).
func TestXorStreamPadsByFourRegardlessOfKeyLength(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7}
	key := gKeyL // 12 bytes, longer than len(src)

	got := xorStream(src, key)

	pad := len(src) % 4
	want := make([]byte, len(src))
	for i := 0; i < pad; i++ {
		want[i] = src[i] ^ key[i]
	}
	for i := pad; i < len(src); i++ {
		want[i] = src[i] ^ key[(i-pad)%len(key)]
	}
	assert.Equal(t, want, got)
}
