package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("REDIS_HOST", "127.0.0.1")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.EnrichTrackDelay != 100*time.Millisecond {
			t.Errorf("expected 100ms enrich delay, got %v", cfg.EnrichTrackDelay)
		}
		if cfg.DiscogsUserAgent != "CratesApp/1.0" {
			t.Errorf("unexpected user agent %q", cfg.DiscogsUserAgent)
		}
		if cfg.RateLimitWindow != 15*time.Minute {
			t.Errorf("expected 15m window, got %v", cfg.RateLimitWindow)
		}
		if len(cfg.CoverHosts) != 2 || cfg.CoverHosts[0] != "i.discogs.com" {
			t.Errorf("unexpected cover hosts %v", cfg.CoverHosts)
		}
		if cfg.RedisAddr() != "127.0.0.1:6379" {
			t.Errorf("unexpected redis addr %q", cfg.RedisAddr())
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("ENRICH_TRACK_DELAY", "250ms")
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("REDIS_HOST", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.EnrichTrackDelay != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", cfg.EnrichTrackDelay)
		}
		if cfg.DBDriver != "sqlite" {
			t.Errorf("expected sqlite driver, got %q", cfg.DBDriver)
		}
		if cfg.RedisAddr() != "" {
			t.Errorf("expected redis disabled, got %q", cfg.RedisAddr())
		}
	})

	t.Run("Unset JWT Secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		os.Unsetenv("JWT_SECRET")

		if _, err := Load(); err == nil {
			t.Error("expected error when JWT_SECRET is unset")
		}
	})

	t.Run("Blank JWT Secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "  ")

		if _, err := Load(); !errors.Is(err, ErrMissingJWTSecret) {
			t.Errorf("expected ErrMissingJWTSecret, got %v", err)
		}
	})

	t.Run("Malformed Duration", func(t *testing.T) {
		t.Setenv("DISCOGS_CACHE_TTL", "soon")

		if _, err := Load(); err == nil {
			t.Error("expected error for malformed duration")
		}
	})
}
