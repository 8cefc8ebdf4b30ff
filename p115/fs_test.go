package p115

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtOf(t *testing.T) {
	assert.Equal(t, ".txt", extOf("report.txt"))
	assert.Equal(t, ".gz", extOf("archive.tar.gz"))
	assert.Equal(t, "", extOf("no_extension"))
	assert.Equal(t, "", extOf("dir/file"))
}

func TestExtensionChanged(t *testing.T) {
	assert.False(t, extensionChanged("a.txt", "b.txt"))
	assert.True(t, extensionChanged("a.txt", "a.md"))
	assert.True(t, extensionChanged("a", "a.txt"))
}
