package config

import (
	"os"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Upstream.TinkyWikiBaseURL != "https://codewiki.google" {
		t.Errorf("unexpected TinkyWiki base URL: %q", settings.Upstream.TinkyWikiBaseURL)
	}
	if !settings.Upstream.DeepWikiEnabled {
		t.Error("expected DeepWiki enabled by default")
	}
	if settings.Fetch.HardTimeout != 60*time.Second {
		t.Errorf("expected 60s hard timeout, got %v", settings.Fetch.HardTimeout)
	}
	if settings.Fetch.MaxRetries != 2 {
		t.Errorf("expected 2 max retries, got %d", settings.Fetch.MaxRetries)
	}
	if settings.Cache.ResolutionTTL != 30*time.Minute {
		t.Errorf("expected 30m resolution TTL, got %v", settings.Cache.ResolutionTTL)
	}
	if settings.RateLimit.MaxCalls != 10 {
		t.Errorf("expected 10 max calls, got %d", settings.RateLimit.MaxCalls)
	}
	if settings.RateLimit.Window != 60*time.Second {
		t.Errorf("expected 60s window, got %v", settings.RateLimit.Window)
	}
}

func TestNewWithOverrides(t *testing.T) {
	original := os.Getenv("TINKYWIKI_RATE_LIMIT_MAX_CALLS")
	os.Setenv("TINKYWIKI_RATE_LIMIT_MAX_CALLS", "3")
	defer os.Setenv("TINKYWIKI_RATE_LIMIT_MAX_CALLS", original)

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.RateLimit.MaxCalls != 3 {
		t.Errorf("expected 3 max calls, got %d", settings.RateLimit.MaxCalls)
	}
}

func TestNewDurationAsSeconds(t *testing.T) {
	original := os.Getenv("TINKYWIKI_HARD_TIMEOUT")
	os.Setenv("TINKYWIKI_HARD_TIMEOUT", "90")
	defer os.Setenv("TINKYWIKI_HARD_TIMEOUT", original)

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Fetch.HardTimeout != 90*time.Second {
		t.Errorf("expected 90s hard timeout, got %v", settings.Fetch.HardTimeout)
	}
}

func TestNewDurationWithUnit(t *testing.T) {
	original := os.Getenv("TINKYWIKI_CACHE_TTL")
	os.Setenv("TINKYWIKI_CACHE_TTL", "10m")
	defer os.Setenv("TINKYWIKI_CACHE_TTL", original)

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Cache.PageTTL != 10*time.Minute {
		t.Errorf("expected 10m page TTL, got %v", settings.Cache.PageTTL)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	original := os.Getenv("TINKYWIKI_MAX_RETRIES")
	os.Setenv("TINKYWIKI_MAX_RETRIES", "not-a-number")
	defer os.Setenv("TINKYWIKI_MAX_RETRIES", original)

	_, err := New()
	if err == nil {
		t.Error("expected error for invalid TINKYWIKI_MAX_RETRIES")
	}
}

func TestGetEnvBool(t *testing.T) {
	original := os.Getenv("DEEPWIKI_ENABLED")
	defer os.Setenv("DEEPWIKI_ENABLED", original)

	for _, tc := range []struct {
		val  string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"YES", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"garbage", true}, // falls back to default
	} {
		os.Setenv("DEEPWIKI_ENABLED", tc.val)
		if got := getEnvBool("DEEPWIKI_ENABLED", true); got != tc.want {
			t.Errorf("getEnvBool(%q) = %v, want %v", tc.val, got, tc.want)
		}
	}
}

func TestMustNewPanicsOnInvalid(t *testing.T) {
	original := os.Getenv("TINKYWIKI_RATE_LIMIT_WINDOW")
	os.Setenv("TINKYWIKI_RATE_LIMIT_WINDOW", "bogus")
	defer os.Setenv("TINKYWIKI_RATE_LIMIT_WINDOW", original)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid window")
		}
	}()
	MustNew()
}
