package cache

import (
	"context"
	"fmt"
	"time"

	"fin-nlp/securityid"
)

// ProviderCache keeps provider name lookups in Redis so reruns over the
// same posts do not query the provider again
type ProviderCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewProviderCache creates a provider cache. A nil redis client yields a
// cache that never hits.
func NewProviderCache(redis *RedisClient, ttl time.Duration) *ProviderCache {
	return &ProviderCache{
		redis: redis,
		ttl:   ttl,
	}
}

func providerKey(key string) string {
	return fmt.Sprintf("provider:names:%s", key)
}

// GetNames retrieves cached name records
// Returns the records and true if found, nil and false otherwise
func (c *ProviderCache) GetNames(ctx context.Context, key string) ([]securityid.NameRecord, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	var records []securityid.NameRecord
	if err := c.redis.Get(ctx, providerKey(key), &records); err != nil {
		return nil, false
	}

	return records, true
}

// SetNames caches name records
func (c *ProviderCache) SetNames(ctx context.Context, key string, records []securityid.NameRecord) error {
	if c == nil || c.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	return c.redis.Set(ctx, providerKey(key), records, c.ttl)
}
