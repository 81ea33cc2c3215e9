package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CartCache keeps short-lived JSON snapshots of backend cart reads so a page
// refresh does not always pay a round trip to the distributor backend. Keys
// are derived from a digest of the opaque session token, never the token
// itself, so a Redis dump does not leak credentials.
type CartCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartCache constructs a cache helper. A nil client or non-positive TTL
// yields a no-op cache.
func NewCartCache(client *redis.Client, ttl time.Duration) *CartCache {
	return &CartCache{client: client, ttl: ttl}
}

// Key returns the cache key for the given opaque token.
func Key(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return "cart:" + hex.EncodeToString(sum[:])
}

// GetJSON unmarshals a cached cart snapshot into dst. It reports whether the
// key existed.
func (c *CartCache) GetJSON(ctx context.Context, token string, dst any) (bool, error) {
	if c == nil || c.client == nil || c.ttl <= 0 || token == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, Key(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *CartCache) SetJSON(ctx context.Context, token string, v any) error {
	if c == nil || c.client == nil || c.ttl <= 0 || token == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(token), data, c.ttl).Err()
}

// Invalidate drops the snapshot after a charge edit or order placement so the
// next read reflects the backend's accepted state.
func (c *CartCache) Invalidate(ctx context.Context, token string) error {
	if c == nil || c.client == nil || token == "" {
		return nil
	}
	return c.client.Del(ctx, Key(token)).Err()
}
