package upload

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/chenyanggao-clone/p115client/api"
)

// stsCacheKey is the single slot the process-wide STS cache uses: the
// Service issues one credential triple per session, not per bucket
// (§5 "Shared-resource policy").
const stsCacheKey = "sts"

// STSProvider fetches a fresh STS credential triple from the Service.
type STSProvider func(ctx context.Context) (api.STSCredentials, error)

// STSCache caches short-lived OSS credentials process-wide with an
// expiry, refreshed lazily under a single-flight lock so concurrent
// uploads don't thunder the STS endpoint (§5).
type STSCache struct {
	cache    *gocache.Cache
	group    singleflight.Group
	provider STSProvider
}

// NewSTSCache builds a cache that calls provider to refresh credentials
// on first use or after expiry.
func NewSTSCache(provider STSProvider) *STSCache {
	return &STSCache{
		cache:    gocache.New(gocache.NoExpiration, 0),
		provider: provider,
	}
}

// Get returns cached credentials if still valid, otherwise refreshes
// them (once, even under concurrent callers) and caches the result with
// a TTL derived from the credential's own expiry.
func (s *STSCache) Get(ctx context.Context) (api.STSCredentials, error) {
	if v, ok := s.cache.Get(stsCacheKey); ok {
		creds := v.(api.STSCredentials)
		if time.Now().Unix() < creds.Expiration {
			return creds, nil
		}
	}

	v, err, _ := s.group.Do(stsCacheKey, func() (any, error) {
		// A flight that finished after our cache check above may already
		// have stored fresh credentials.
		if v, ok := s.cache.Get(stsCacheKey); ok {
			if creds := v.(api.STSCredentials); time.Now().Unix() < creds.Expiration {
				return creds, nil
			}
		}
		creds, err := s.provider(ctx)
		if err != nil {
			return api.STSCredentials{}, err
		}
		ttl := time.Until(time.Unix(creds.Expiration, 0))
		if ttl <= 0 {
			ttl = gocache.DefaultExpiration
		}
		s.cache.Set(stsCacheKey, creds, ttl)
		return creds, nil
	})
	if err != nil {
		return api.STSCredentials{}, err
	}
	return v.(api.STSCredentials), nil
}

// Invalidate drops the cached credentials, forcing the next Get to
// refresh. Nothing in this package calls it: an OSS rejection of expired
// credentials is returned as an error from the failing call, and Get
// refreshes only once the cached Expiration has passed.
func (s *STSCache) Invalidate() {
	s.cache.Delete(stsCacheKey)
}
