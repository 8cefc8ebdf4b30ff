package upload

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSourceReadAt(t *testing.T) {
	b := &BufferSource{Data: []byte("hello world")}
	size, known := b.Size()
	assert.True(t, known)
	assert.Equal(t, int64(11), size)

	buf := make([]byte, 5)
	n, err := b.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))
}

func TestBufferSourceReadAtPastEnd(t *testing.T) {
	b := &BufferSource{Data: []byte("hi")}
	buf := make([]byte, 4)
	n, err := b.ReadAt(buf, 0)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
}

func TestRangeSHA1MatchesWholeBufferSHA1(t *testing.T) {
	b := &BufferSource{Data: []byte("the quick brown fox")}
	whole, err := RangeSHA1(b, 0, int64(len(b.Data)-1))
	require.NoError(t, err)
	assert.Equal(t, b.SHA1(), whole)
}

func TestRangeSHA1PartialRange(t *testing.T) {
	b := &BufferSource{Data: []byte("0123456789")}
	got, err := RangeSHA1(b, 2, 5)
	require.NoError(t, err)
	want := sha1Hex([]byte("2345"))
	assert.Equal(t, want, got)
}

type chunkSourceFromSlices struct {
	chunks [][]byte
	idx    int
}

func (c *chunkSourceFromSlices) Size() (int64, bool) { return 0, false }

func (c *chunkSourceFromSlices) Next(ctx context.Context) ([]byte, error) {
	if c.idx >= len(c.chunks) {
		return nil, io.EOF
	}
	chunk := c.chunks[c.idx]
	c.idx++
	return chunk, nil
}

func TestDrainToBufferConcatenatesChunks(t *testing.T) {
	src := &chunkSourceFromSlices{chunks: [][]byte{[]byte("ab"), []byte("cd"), []byte("e")}}
	buf, err := DrainToBuffer(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(buf.Data))
}
