package envelope

import (
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECDHEnvelopeRoundTripPadded(t *testing.T) {
	codec, err := NewECDHCodec()
	require.NoError(t, err)
	assert.Len(t, codec.PublicKey(), 29)

	for _, plaintext := range [][]byte{
		[]byte(`{"bucket":"b","object":"o"}`),
		make([]byte, 1),
		make([]byte, 64), // exact block multiple
	} {
		wire, err := codec.Encode(plaintext)
		require.NoError(t, err)
		got, err := codec.Decode(wire, false)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestECDHEnvelopeRoundTripCompressed(t *testing.T) {
	codec, err := NewECDHCodec()
	require.NoError(t, err)

	plaintext := []byte(`{"callback":{"callback":"...","callback_var":"..."}}`)
	compressed := make([]byte, lz4.CompressBlockBound(len(plaintext)))
	var c lz4.Compressor
	n, err := c.CompressBlock(plaintext, compressed)
	require.NoError(t, err)
	compressed = compressed[:n]

	prefixed := make([]byte, 2+len(compressed))
	prefixed[0] = byte(len(compressed))
	prefixed[1] = byte(len(compressed) >> 8)
	copy(prefixed[2:], compressed)

	wire, err := codec.Encode(prefixed)
	require.NoError(t, err)

	got, err := codec.Decode(wire, true)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestECDHPublicKeyCompactEncoding(t *testing.T) {
	codec, err := NewECDHCodec()
	require.NoError(t, err)
	pub := codec.PublicKey()
	assert.Equal(t, byte(29), pub[0])
	assert.Contains(t, []byte{0x02, 0x03}, pub[1])
}
