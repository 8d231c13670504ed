package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/steeplehq/steeple/pkg/tenants"
)

// ChurchCache caches church records by domain in Redis. Domain lookup
// runs on every landing-page hit, so it is the one read worth caching;
// role and profile data is never cached here because authorization
// must see role changes immediately.
type ChurchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChurchCache creates a ChurchCache with the given TTL. A zero TTL
// falls back to five minutes.
func NewChurchCache(client *redis.Client, ttl time.Duration) *ChurchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ChurchCache{client: client, ttl: ttl}
}

func churchKey(domain string) string {
	return "church:domain:" + strings.ToLower(domain)
}

// GetByDomain returns the cached church, or (nil, false) on a miss or
// any Redis failure. Callers always fall through to the database.
func (c *ChurchCache) GetByDomain(ctx context.Context, domain string) (*tenants.Church, bool) {
	data, err := c.client.Get(ctx, churchKey(domain)).Result()
	if err != nil {
		return nil, false
	}

	var church tenants.Church
	if err := json.Unmarshal([]byte(data), &church); err != nil {
		// Corrupt entry; drop it so the next read repopulates.
		c.client.Del(ctx, churchKey(domain))
		return nil, false
	}
	return &church, true
}

// Set stores the church under its domain. Failures are returned but
// callers treat the cache as best-effort.
func (c *ChurchCache) Set(ctx context.Context, church *tenants.Church) error {
	data, err := json.Marshal(church)
	if err != nil {
		return fmt.Errorf("failed to marshal church: %w", err)
	}
	return c.client.Set(ctx, churchKey(church.DomainName), data, c.ttl).Err()
}

// Invalidate removes the cached record for a domain.
func (c *ChurchCache) Invalidate(ctx context.Context, domain string) error {
	return c.client.Del(ctx, churchKey(domain)).Err()
}
