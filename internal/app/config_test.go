package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Fatalf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.CacheSweepEvery != 5*time.Minute {
		t.Fatalf("CacheSweepEvery = %v, want 5m", cfg.CacheSweepEvery)
	}
	if cfg.CacheMaxEntries != 1000 {
		t.Fatalf("CacheMaxEntries = %d, want 1000", cfg.CacheMaxEntries)
	}
	if cfg.ResolveTimeout != 10*time.Second {
		t.Fatalf("ResolveTimeout = %v, want 10s", cfg.ResolveTimeout)
	}
	if cfg.BatchTimeout != 55*time.Second {
		t.Fatalf("BatchTimeout = %v, want 55s", cfg.BatchTimeout)
	}
	if cfg.DeliveryPolicy != DeliveryAuto {
		t.Fatalf("DeliveryPolicy = %q, want auto", cfg.DeliveryPolicy)
	}
	if cfg.EpisodeLinkMode != LinkRewrite {
		t.Fatalf("EpisodeLinkMode = %q, want rewrite", cfg.EpisodeLinkMode)
	}
	if cfg.FFmpegPath != "ffmpeg" || cfg.FFprobePath != "ffprobe" {
		t.Fatalf("unexpected tool paths: %q %q", cfg.FFmpegPath, cfg.FFprobePath)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("CACHE_TTL_MINUTES", "3")
	t.Setenv("DELIVERY_MODE", "REDIRECT")
	t.Setenv("EPISODE_LINK_MODE", "resolve")
	t.Setenv("PLAY_API_BASE_URL", "http://play.internal:4567/")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.CacheTTL != 3*time.Minute {
		t.Fatalf("CacheTTL = %v, want 3m", cfg.CacheTTL)
	}
	if cfg.DeliveryPolicy != DeliveryRedirect {
		t.Fatalf("DeliveryPolicy = %q, want redirect", cfg.DeliveryPolicy)
	}
	if cfg.EpisodeLinkMode != LinkResolve {
		t.Fatalf("EpisodeLinkMode = %q, want resolve", cfg.EpisodeLinkMode)
	}
	if cfg.PlayAPIBaseURL != "http://play.internal:4567" {
		t.Fatalf("PlayAPIBaseURL = %q, trailing slash must be trimmed", cfg.PlayAPIBaseURL)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_TTL_MINUTES", "not-a-number")
	t.Setenv("CACHE_MAX_ENTRIES", "-5")
	t.Setenv("DELIVERY_MODE", "carrier-pigeon")

	cfg := LoadConfig()
	if cfg.CacheTTL != 10*time.Minute {
		t.Fatalf("CacheTTL = %v, want default 10m", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 1000 {
		t.Fatalf("CacheMaxEntries = %d, want default 1000", cfg.CacheMaxEntries)
	}
	if cfg.DeliveryPolicy != DeliveryAuto {
		t.Fatalf("DeliveryPolicy = %q, want auto", cfg.DeliveryPolicy)
	}
}
