package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	urlKeyPrefix = "drive:url:"

	errFailedGetURLFmt    = "failed to read cached URL: %w"
	errFailedSetURLFmt    = "failed to cache URL: %w"
	errFailedDeleteURLFmt = "failed to evict cached URL: %w"
)

// URLCache keeps signed download URLs in Redis, keyed by storage key.
// Entries live for half the URL's validity so a cached URL always has at
// least that much time left when handed out.
type URLCache struct {
	client redis.Cmdable
}

func NewURLCache(client redis.Cmdable) *URLCache {
	return &URLCache{client: client}
}

func urlKey(storageKey string) string {
	return urlKeyPrefix + storageKey
}

// Get reports a miss as ("", false, nil).
func (c *URLCache) Get(ctx context.Context, storageKey string) (string, bool, error) {
	url, err := c.client.Get(ctx, urlKey(storageKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf(errFailedGetURLFmt, err)
	}
	return url, true, nil
}

// Set stores url for a URL valid for ttl.
func (c *URLCache) Set(ctx context.Context, storageKey, url string, ttl time.Duration) error {
	cacheTTL := ttl / 2
	if cacheTTL <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, urlKey(storageKey), url, cacheTTL).Err(); err != nil {
		return fmt.Errorf(errFailedSetURLFmt, err)
	}
	return nil
}

// Delete evicts the entries of keys whose blobs are gone.
func (c *URLCache) Delete(ctx context.Context, storageKeys ...string) error {
	if len(storageKeys) == 0 {
		return nil
	}

	keys := make([]string, len(storageKeys))
	for i, k := range storageKeys {
		keys[i] = urlKey(k)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf(errFailedDeleteURLFmt, err)
	}
	return nil
}
