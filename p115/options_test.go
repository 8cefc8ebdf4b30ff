package p115

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 70*time.Second, cfg.timeout)
	assert.Equal(t, 5, cfg.retries)
	assert.Equal(t, int64(16<<20), cfg.partSize)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []Option{
		WithTimeout(10 * time.Second),
		WithRetries(2),
		WithPartSize(1 << 20),
		WithUploadConcurrency(8),
		WithOSSEndpoint("http", "oss.test.invalid"),
	} {
		opt(cfg)
	}
	assert.Equal(t, 10*time.Second, cfg.timeout)
	assert.Equal(t, 2, cfg.retries)
	assert.Equal(t, int64(1<<20), cfg.partSize)
	assert.Equal(t, 8, cfg.uploadConcurrency)
	assert.Equal(t, "http", cfg.ossScheme)
	assert.Equal(t, "oss.test.invalid", cfg.ossEndpointHost)
}

func TestWithVersionPredicateIgnoresNil(t *testing.T) {
	cfg := defaultConfig()
	original := cfg.versionPredicate
	WithVersionPredicate(nil)(cfg)
	assert.NotNil(t, cfg.versionPredicate)
	_ = original
}
