package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type snapshot struct {
	CartID string `json:"cartId"`
	Total  int64  `json:"total"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*CartCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartCache(client, ttl), mr
}

func TestCartCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	var miss snapshot
	found, err := c.GetJSON(ctx, "session-token", &miss)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected a miss on empty cache")
	}

	want := snapshot{CartID: "cart-1", Total: 139_057}
	if err := c.SetJSON(ctx, "session-token", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got snapshot
	found, err = c.GetJSON(ctx, "session-token", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || got != want {
		t.Fatalf("expected %+v, got found=%v %+v", want, found, got)
	}
}

func TestCartCacheKeyNeverContainsToken(t *testing.T) {
	token := "super-secret-opaque-token"
	key := Key(token)
	if key == "" {
		t.Fatal("expected a key")
	}
	if key == "cart:"+token {
		t.Fatal("key must be a digest, not the raw token")
	}
	if key != Key(token) {
		t.Fatal("key derivation must be deterministic")
	}
}

func TestCartCacheInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "tok", snapshot{CartID: "cart-1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Invalidate(ctx, "tok"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(Key("tok")) {
		t.Fatal("expected snapshot dropped")
	}
}

func TestCartCacheTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "tok", snapshot{CartID: "cart-1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	var got snapshot
	found, err := c.GetJSON(ctx, "tok", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected snapshot to expire")
	}
}
