package p115

import "time"

// config holds every tunable NewSession accepts, each overridable by an
// Option. Defaults follow §5's timeout guidance and §4.6's part-size
// policy.
type config struct {
	timeout           time.Duration
	retries           int
	partSize          int64
	uploadConcurrency int
	versionPredicate  VersionPredicate
	serviceDomain     string
	ossScheme         string
	ossEndpointHost   string
}

func defaultConfig() *config {
	return &config{
		// §5's 4-tuple timeout (connect=5s, send=60s, read=60s, pool=5s)
		// collapses to one overall client timeout per the spec's escape
		// hatch for implementations without per-phase knobs.
		timeout:           70 * time.Second,
		retries:           5,
		partSize:          16 << 20,
		uploadConcurrency: 4,
		versionPredicate:  DefaultVersionPredicate,
		serviceDomain:     "example-service.invalid",
		ossScheme:         "https",
		ossEndpointHost:   "oss-cn-shenzhen.example-service.invalid",
	}
}

// Option configures a Session at construction time.
type Option func(*config)

// WithTimeout overrides the single overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRetries overrides the idempotent-request retry ceiling.
func WithRetries(n int) Option {
	return func(c *config) { c.retries = n }
}

// WithPartSize overrides the OSS multipart chunk size.
func WithPartSize(bytes int64) Option {
	return func(c *config) { c.partSize = bytes }
}

// WithUploadConcurrency overrides how many OSS parts upload in
// parallel.
func WithUploadConcurrency(n int) Option {
	return func(c *config) { c.uploadConcurrency = n }
}

// WithVersionPredicate overrides the AttrCache freshness predicate
// (§4.8's "caller-supplied predicate over self_attr").
func WithVersionPredicate(p VersionPredicate) Option {
	return func(c *config) {
		if p != nil {
			c.versionPredicate = p
		}
	}
}

// WithServiceDomain overrides the base domain cookies are seeded
// against (useful for pointing a test session at an httptest server).
func WithServiceDomain(domain string) Option {
	return func(c *config) { c.serviceDomain = domain }
}

// WithOSSEndpoint overrides the OSS scheme and endpoint host the
// multipart driver targets.
func WithOSSEndpoint(scheme, host string) Option {
	return func(c *config) {
		c.ossScheme = scheme
		c.ossEndpointHost = host
	}
}
