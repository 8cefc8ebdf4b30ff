package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustGenerateRSA(t *testing.T, bits int) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)
	return key
}

// signChunkWithPrivateExponent reproduces rsaPKCS1Encrypt's PKCS#1 v1.5
// padding but raises to the private exponent d instead of e, simulating
// how the server would "encrypt" a response block it wants the client to
// recover with the public exponent.
func signChunkWithPrivateExponent(t *testing.T, chunk []byte, n, d *big.Int) []byte {
	t.Helper()
	padded := make([]byte, rsaBlockSize)
	padded[0] = 0x00
	padded[1] = 0x02
	padLen := rsaBlockSize - 3 - len(chunk)
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = 0x01
	}
	copy(padded[2:], pad)
	padded[2+padLen] = 0x00
	copy(padded[3+padLen:], chunk)

	m := new(big.Int).SetBytes(padded)
	c := new(big.Int).Exp(m, d, n)

	out := make([]byte, rsaBlockSize)
	cb := c.Bytes()
	copy(out[rsaBlockSize-len(cb):], cb)
	return out
}

func appendBase64(dst, src []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(src)))
	base64.StdEncoding.Encode(out, src)
	return append(dst, out...)
}
