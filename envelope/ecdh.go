package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pierrec/lz4/v4"
)

// lz4DecompressSize is the fixed destination buffer size the Service's
// decompress flag assumes.
const lz4DecompressSize = 8192

// ECDHCodec wraps the upload-initiation request/response. A fresh
// ECDHCodec is created once per Session: the ephemeral P-224 key pair is
// generated at session construction and the derived AES key/IV are
// reused for every upload-init call the session makes.
type ECDHCodec struct {
	aesKey []byte // 16 bytes
	aesIV  []byte // 16 bytes
	pubKey []byte // 29-byte compact SEC1 public key sent to the server
}

// NewECDHCodec generates an ephemeral P-224 key pair, derives the shared
// secret against the Service's fixed server public key, and splits it
// into an AES-128 key and IV.
func NewECDHCodec() (*ECDHCodec, error) {
	curve := elliptic.P224()

	priv, x, y, err := elliptic.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("envelope: generate ECDH key: %w", err)
	}

	serverX, serverY := unmarshalServerPubKey(curve, ecdhRemotePubKey)
	sharedX, _ := curve.ScalarMult(serverX, serverY, priv)

	secret := make([]byte, 28)
	sb := sharedX.Bytes()
	copy(secret[28-len(sb):], sb)

	pub := compactPubKey(x, y)

	return &ECDHCodec{
		aesKey: secret[:16],
		aesIV:  secret[12:28],
		pubKey: pub,
	}, nil
}

// PublicKey returns the 29-byte compact public key to send as part of
// the upload-init token.
func (c *ECDHCodec) PublicKey() []byte { return c.pubKey }

// compactPubKey encodes (x, y) as byte(29) || byte(0x02+(y&1)) || x,
// i.e. a length-prefixed SEC1 compressed point, 28-byte big-endian X.
func compactPubKey(x, y *big.Int) []byte {
	out := make([]byte, 29)
	out[0] = 29
	if y.Bit(0) == 1 {
		out[1] = 0x03
	} else {
		out[1] = 0x02
	}
	xb := x.Bytes()
	copy(out[2+28-len(xb):], xb)
	return out
}

// unmarshalServerPubKey splits the Service's fixed 56-byte server public
// key (uncompressed X||Y, no prefix) into its X and Y coordinates.
func unmarshalServerPubKey(curve elliptic.Curve, raw []byte) (*big.Int, *big.Int) {
	half := len(raw) / 2
	x := new(big.Int).SetBytes(raw[:half])
	y := new(big.Int).SetBytes(raw[half:])
	_ = curve
	return x, y
}

// Encode PKCS#7-pads plaintext to a 16-byte boundary and AES-128-CBC
// encrypts it.
func (c *ECDHCodec) Encode(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, c.aesIV)
	cbc.CryptBlocks(out, padded)
	return out, nil
}

// Decode AES-128-CBC decrypts a length rounded down to a multiple of 16,
// then either strips PKCS#7 padding, or, if decompress is set, treats
// the plaintext as a little-endian uint16 length prefix followed by an
// LZ4 block to inflate to lz4DecompressSize bytes.
func (c *ECDHCodec) Decode(wire []byte, decompress bool) ([]byte, error) {
	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, err
	}
	n := (len(wire) / aes.BlockSize) * aes.BlockSize
	if n == 0 {
		return nil, fmt.Errorf("%w: ciphertext shorter than one AES block", ErrCryptoMismatch)
	}
	out := make([]byte, n)
	cbc := cipher.NewCBCDecrypter(block, c.aesIV)
	cbc.CryptBlocks(out, wire[:n])

	if !decompress {
		return pkcs7Unpad(out)
	}

	if len(out) < 2 {
		return nil, fmt.Errorf("%w: missing LZ4 length prefix", ErrCryptoMismatch)
	}
	length := int(out[0]) | int(out[1])<<8
	if 2+length > len(out) {
		return nil, fmt.Errorf("%w: LZ4 length prefix exceeds payload", ErrCryptoMismatch)
	}
	dst := make([]byte, lz4DecompressSize)
	n2, err := lz4.UncompressBlock(out[2:2+length], dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrCryptoMismatch, err)
	}
	return dst[:n2], nil
}

func pkcs7Pad(src []byte, blockSize int) []byte {
	padLen := blockSize - len(src)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte{}, src...), padding...)
}

func pkcs7Unpad(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrCryptoMismatch)
	}
	padLen := int(src[len(src)-1])
	if padLen == 0 || padLen > len(src) {
		return nil, fmt.Errorf("%w: invalid PKCS#7 padding", ErrCryptoMismatch)
	}
	return src[:len(src)-padLen], nil
}
