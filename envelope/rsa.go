// Package envelope implements the Service's two bespoke cryptographic
// wrappers: the RSA download-URL envelope and the ECDH upload-init
// envelope. Both are byte-exact constructions the Service requires;
// neither is a library-standard use of the underlying primitive, so the
// implementation stays close to the upstream reference rather than a
// generic crypto helper.
package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const rsaBlockSize = 128
const rsaChunkSize = rsaBlockSize - 11 // 117, PKCS#1 v1.5 overhead

var (
	rsaN = new(big.Int)
	rsaE = big.NewInt(rsaExponent)
)

func init() {
	if _, ok := rsaN.SetString(rsaModulusHex, 16); !ok {
		panic("envelope: invalid RSA modulus constant")
	}
}

// RSACodec wraps every request/response of the download-URL negotiation
// endpoint. A fresh RSACodec must be created per request: rand_key is
// generated once and reused for the matching decode of that request's
// response.
type RSACodec struct {
	randKey []byte // 16 random bytes, generated on encode
}

// NewRSACodec generates a fresh 16-byte rand_key and returns a codec
// bound to it.
func NewRSACodec() (*RSACodec, error) {
	randKey := make([]byte, 16)
	if _, err := rand.Read(randKey); err != nil {
		return nil, fmt.Errorf("envelope: rand_key: %w", err)
	}
	return &RSACodec{randKey: randKey}, nil
}

// genKey derives an L-byte key from randKey following the Service's
// gen_key(rand_key, L) procedure. L is 4 on encode and 12 on decode.
func genKey(randKey []byte, skLen int) []byte {
	out := make([]byte, skLen)
	length := skLen * (skLen - 1)
	index := 0
	for i := 0; i < skLen; i++ {
		x := (int(randKey[i]) + int(gKTS[index])) & 0xff
		out[i] = gKTS[length] ^ byte(x)
		length -= skLen
		index += skLen
	}
	return out
}

// xorStream XORs src against key following the Service's xor(src, key):
// the first len(src)%4 bytes against the matching prefix of key, and the
// remainder (re-indexed from zero) against key repeated by its own length.
func xorStream(src, key []byte) []byte {
	out := make([]byte, len(src))
	pad := len(src) % 4
	for i := 0; i < pad; i++ {
		out[i] = src[i] ^ key[i]
	}
	klen := len(key)
	for i := pad; i < len(src); i++ {
		out[i] = src[i] ^ key[(i-pad)%klen]
	}
	return out
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// Encode wraps plaintext into the wire payload (base64 ASCII) expected by
// the download-URL negotiation endpoint.
func (c *RSACodec) Encode(plaintext []byte) ([]byte, error) {
	keyS := genKey(c.randKey, 4)
	tmp := reverseBytes(xorStream(plaintext, keyS))
	block := append(append([]byte{}, c.randKey...), xorStream(tmp, gKeyL)...)

	var cipherBytes []byte
	for off := 0; off < len(block); off += rsaChunkSize {
		end := off + rsaChunkSize
		if end > len(block) {
			end = len(block)
		}
		chunk := block[off:end]
		enc, err := rsaPKCS1Encrypt(chunk)
		if err != nil {
			return nil, err
		}
		cipherBytes = append(cipherBytes, enc...)
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(len(cipherBytes)))
	base64.StdEncoding.Encode(out, cipherBytes)
	return out, nil
}

// Decode unwraps a base64 wire payload back into the plaintext response
// body, using the rand_key this codec's matching Encode call generated.
func (c *RSACodec) Decode(wire []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(wire))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrCryptoMismatch, err)
	}
	if len(raw)%rsaBlockSize != 0 {
		return nil, fmt.Errorf("%w: wire length %d not a multiple of %d", ErrCryptoMismatch, len(raw), rsaBlockSize)
	}

	var block []byte
	for off := 0; off < len(raw); off += rsaBlockSize {
		chunk := raw[off : off+rsaBlockSize]
		m, err := rsaTextbookDecrypt(chunk)
		if err != nil {
			return nil, err
		}
		block = append(block, m...)
	}

	if len(block) < 16 {
		return nil, fmt.Errorf("%w: decoded block too short", ErrCryptoMismatch)
	}
	randKey := block[:16]
	body := block[16:]

	keyL := genKey(randKey, 12)
	tmp := reverseBytes(xorStream(body, keyL))
	keyS := genKey(c.randKey, 4)
	return xorStream(tmp, keyS), nil
}

// rsaPKCS1Encrypt performs textbook RSA-PKCS#1-v1.5 encryption of a chunk
// no larger than rsaChunkSize bytes, using the Service's fixed public key.
func rsaPKCS1Encrypt(chunk []byte) ([]byte, error) {
	padded := make([]byte, rsaBlockSize)
	padded[0] = 0x00
	padded[1] = 0x02
	padLen := rsaBlockSize - 3 - len(chunk)
	pad := make([]byte, padLen)
	if _, err := rand.Read(pad); err != nil {
		return nil, err
	}
	for i, b := range pad {
		if b == 0x00 {
			pad[i] = 0x01
		}
	}
	copy(padded[2:], pad)
	padded[2+padLen] = 0x00
	copy(padded[3+padLen:], chunk)

	m := new(big.Int).SetBytes(padded)
	c := new(big.Int).Exp(m, rsaE, rsaN)

	out := make([]byte, rsaBlockSize)
	cb := c.Bytes()
	copy(out[rsaBlockSize-len(cb):], cb)
	return out, nil
}

// rsaTextbookDecrypt performs c^e mod n (the Service uses the public
// exponent for "decryption" of its own RSA-encrypted responses — this is
// intentional, not a mistake: the server encrypts with its private key
// and the matching verification-style operation here is m = c^e mod n)
// and strips the PKCS#1 padding.
func rsaTextbookDecrypt(block []byte) ([]byte, error) {
	c := new(big.Int).SetBytes(block)
	m := new(big.Int).Exp(c, rsaE, rsaN)

	mb := m.Bytes()
	// Find the first 0x00 after byte 0 (the PKCS#1 marker byte sits at
	// index 1 in a correctly-padded 00 02 ... 00 block, but the leading
	// 0x00 is dropped by big.Int.Bytes(), so scan from the start).
	idx := -1
	for i := 1; i < len(mb); i++ {
		if mb[i] == 0x00 {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(mb) {
		return nil, fmt.Errorf("%w: malformed PKCS#1 padding", ErrCryptoMismatch)
	}
	return mb[idx+1:], nil
}
