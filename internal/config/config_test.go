package config

import (
	"testing"
	"time"
)

func TestLoadRequiresBackendAndRedis(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "",
		"REDIS_URL":        "redis://localhost:6379/0",
	})
	if err == nil {
		t.Fatal("expected error for missing BACKEND_BASE_URL")
	}

	_, err = LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "https://backend.example.com",
		"REDIS_URL":        "",
	})
	if err == nil {
		t.Fatal("expected error for missing REDIS_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "https://backend.example.com/",
		"REDIS_URL":        "redis://localhost:6379/0",
		"PORT":             "",
		"CHARGES_DEBOUNCE": "",
		"RATE_LIMIT_MAX":   "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.HTTPAddr())
	}
	if cfg.BackendBaseURL != "https://backend.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendBaseURL)
	}
	if cfg.ChargesDebounce != time.Second {
		t.Fatalf("expected 1s debounce default, got %v", cfg.ChargesDebounce)
	}
	if cfg.RateLimitMax != 300 {
		t.Fatalf("expected default rate limit 300, got %d", cfg.RateLimitMax)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected 24h idempotency ttl, got %v", cfg.IdempotencyTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"BACKEND_BASE_URL":     "https://backend.example.com",
		"REDIS_URL":            "redis://localhost:6379/0",
		"CHARGES_DEBOUNCE":     "250ms",
		"BREAKER_OPEN_FOR":     "5s",
		"CORS_ALLOWED_ORIGINS": "https://a.example.com, https://b.example.com",
		"ENABLE_PPROF":         "true",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChargesDebounce != 250*time.Millisecond {
		t.Fatalf("expected 250ms debounce, got %v", cfg.ChargesDebounce)
	}
	if cfg.BreakerOpenFor != 5*time.Second {
		t.Fatalf("expected 5s breaker open, got %v", cfg.BreakerOpenFor)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.EnablePprof {
		t.Fatal("expected pprof enabled")
	}
}
