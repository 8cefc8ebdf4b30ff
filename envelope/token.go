package envelope

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// EncodeToken builds the k_ec query parameter for the upload-init
// request: a 48-byte, CRC-checked scramble of the client's compact
// public key and a unix-seconds timestamp, base64-encoded.
func EncodeToken(pubKey []byte, timestamp int64) (string, error) {
	if len(pubKey) != 29 {
		return "", fmt.Errorf("envelope: public key must be 29 bytes, got %d", len(pubKey))
	}
	r1, r2, err := randomPair()
	if err != nil {
		return "", err
	}

	buf := make([]byte, 44)
	for i := 0; i < 15; i++ {
		buf[i] = pubKey[i] ^ r1
	}
	buf[15] = r1
	buf[16] = 0x73 ^ r1
	buf[17], buf[18], buf[19] = r1, r1, r1

	// timestamp_bytes: big-endian minimum-length, reversed so byte 20
	// holds the least significant byte.
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(timestamp))
	tsMin := minimalBytes(tsBuf[:])
	tsRev := reverseBytes(tsMin)
	for i := 0; i < 4; i++ {
		var b byte
		if i < len(tsRev) {
			b = tsRev[i]
		}
		buf[20+i] = r1 ^ b
	}

	for i := 0; i < 15; i++ {
		buf[24+i] = pubKey[15+i] ^ r2
	}
	buf[39] = r2
	buf[40] = 0x01 ^ r2
	buf[41], buf[42], buf[43] = r2, r2, r2

	sum := crc32.ChecksumIEEE(append(append([]byte{}, crcSalt...), buf...))
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], sum)
	crcRev := reverseBytes(crcBuf[:])

	out := append(buf, crcRev...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecodeToken recovers the public key and timestamp from a k_ec token.
func DecodeToken(token string) (pubKey []byte, timestamp int64, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, 0, fmt.Errorf("envelope: token base64: %w", err)
	}
	if len(raw) != 48 {
		return nil, 0, fmt.Errorf("envelope: token length %d, want 48", len(raw))
	}
	buf := raw[:44]

	r1 := buf[15]
	pub := make([]byte, 29)
	for i := 0; i < 15; i++ {
		pub[i] = buf[i] ^ r1
	}
	r2 := buf[39]
	for i := 0; i < 15; i++ {
		pub[15+i] = buf[24+i] ^ r2
	}

	var tsRev [4]byte
	for i := 0; i < 4; i++ {
		tsRev[i] = buf[20+i] ^ r1
	}
	tsMin := reverseBytes(tsRev[:])
	var tsFull [8]byte
	copy(tsFull[8-len(tsMin):], tsMin)
	timestamp = int64(binary.BigEndian.Uint64(tsFull[:]))

	return pub, timestamp, nil
}

func randomPair() (byte, byte, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, 0, fmt.Errorf("envelope: random bytes: %w", err)
	}
	return b[0], b[1], nil
}

// minimalBytes strips leading zero bytes, leaving at least one byte.
func minimalBytes(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:]
}
