package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeFromMapDirectoryHasNoFid(t *testing.T) {
	n := nodeFromMap(map[string]any{"cid": "7", "pid": "3", "name": "docs"})
	assert.Equal(t, uint64(7), n.ID)
	assert.Equal(t, uint64(3), n.ParentID)
	assert.Equal(t, "docs", n.Name)
	assert.True(t, n.IsDirectory)
}

func TestNodeFromMapFileUsesNField(t *testing.T) {
	n := nodeFromMap(map[string]any{"fid": "42", "pid": "3", "n": "a.txt", "s": float64(100), "sha": "ABCD", "pc": "pick123"})
	assert.Equal(t, uint64(42), n.ID)
	assert.False(t, n.IsDirectory)
	assert.Equal(t, int64(100), n.Size)
	assert.Equal(t, "ABCD", n.SHA1)
	assert.Equal(t, "pick123", n.PickCode)
}

func TestComputeUploadSigDeterministic(t *testing.T) {
	a := computeUploadSig("userkey", "1000", "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "U_1_0")
	b := computeUploadSig("userkey", "1000", "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "U_1_0")
	assert.Equal(t, a, b)
	assert.Len(t, a, 40) // uppercase hex SHA-1
}

func TestComputeUploadSigVariesWithInputs(t *testing.T) {
	a := computeUploadSig("userkey", "1000", "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "U_1_0")
	b := computeUploadSig("userkey", "1000", "ABCDEF0123456789ABCDEF0123456789ABCDEF01", "U_1_1")
	assert.NotEqual(t, a, b)
}

func TestComputeUploadTokenDeterministic(t *testing.T) {
	a := computeUploadToken("ABCDEF0123456789ABCDEF0123456789ABCDEF01", 1234, "", "", "1000", 1700000000)
	b := computeUploadToken("ABCDEF0123456789ABCDEF0123456789ABCDEF01", 1234, "", "", "1000", 1700000000)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32) // md5 hex
}

func TestExtractJSONString(t *testing.T) {
	body := []byte(`{"url":"https://example.invalid/f","t":"1700000000"}`)
	assert.Equal(t, "https://example.invalid/f", extractJSONString(body, "url"))
	assert.Equal(t, "1700000000", extractJSONString(body, "t"))
	assert.Equal(t, "", extractJSONString(body, "missing"))
}

func TestJSONInt(t *testing.T) {
	body := []byte(`{"status":1,"statuscode":0}`)
	assert.Equal(t, int64(1), jsonInt(body, "status"))
	assert.Equal(t, int64(0), jsonInt(body, "statuscode"))
}
