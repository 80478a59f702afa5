// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Per-tier fallback configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	Upstream  UpstreamConfig
	Fetch     FetchConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Response  ResponseConfig
}

// UpstreamConfig holds base URLs, credentials, and per-tier enable flags.
type UpstreamConfig struct {
	TinkyWikiBaseURL string
	DeepWikiBaseURL  string
	DeepWikiEnabled  bool
	GitHubAPIBaseURL string
	GitHubAPIEnabled bool
	GitHubToken      string
	FallbackEnabled  bool
}

// FetchConfig holds retry and timeout behavior for upstream calls.
type FetchConfig struct {
	HardTimeout   time.Duration
	HTTPTimeout   time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	ElicitTimeout time.Duration
}

// CacheConfig holds TTLs for the resolution, page, search, and topic caches.
type CacheConfig struct {
	ResolutionTTL time.Duration
	PageTTL       time.Duration
	SearchTTL     time.Duration
	TopicTTL      time.Duration
}

// RateLimitConfig holds the sliding-window admission budget.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// ResponseConfig holds output shaping limits.
type ResponseConfig struct {
	MaxChars      int
	PreviewChars  int
	DefaultLimit  int
	MaxLimit      int
	ElicitChoices int
}

// New creates settings from environment variables.
// Returns an error if any variable contains an invalid value.
func New() (Settings, error) {
	hardTimeout, err := getEnvDuration("TINKYWIKI_HARD_TIMEOUT", 60*time.Second)
	if err != nil {
		return Settings{}, err
	}

	httpTimeout, err := getEnvDuration("TINKYWIKI_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return Settings{}, err
	}

	maxRetries, err := getEnvInt("TINKYWIKI_MAX_RETRIES", 2)
	if err != nil {
		return Settings{}, err
	}

	retryDelay, err := getEnvDuration("TINKYWIKI_RETRY_DELAY", 3*time.Second)
	if err != nil {
		return Settings{}, err
	}

	elicitTimeout, err := getEnvDuration("TINKYWIKI_ELICIT_TIMEOUT", 60*time.Second)
	if err != nil {
		return Settings{}, err
	}

	resolutionTTL, err := getEnvDuration("TINKYWIKI_RESOLUTION_CACHE_TTL", 30*time.Minute)
	if err != nil {
		return Settings{}, err
	}

	pageTTL, err := getEnvDuration("TINKYWIKI_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Settings{}, err
	}

	searchTTL, err := getEnvDuration("TINKYWIKI_SEARCH_CACHE_TTL", 2*time.Minute)
	if err != nil {
		return Settings{}, err
	}

	topicTTL, err := getEnvDuration("TINKYWIKI_TOPIC_CACHE_TTL", 30*time.Minute)
	if err != nil {
		return Settings{}, err
	}

	maxCalls, err := getEnvInt("TINKYWIKI_RATE_LIMIT_MAX_CALLS", 10)
	if err != nil {
		return Settings{}, err
	}

	window, err := getEnvDuration("TINKYWIKI_RATE_LIMIT_WINDOW", 60*time.Second)
	if err != nil {
		return Settings{}, err
	}

	maxChars, err := getEnvInt("TINKYWIKI_RESPONSE_MAX_CHARS", 30000)
	if err != nil {
		return Settings{}, err
	}

	previewChars, err := getEnvInt("TINKYWIKI_TOPIC_PREVIEW_CHARS", 200)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Upstream: UpstreamConfig{
			TinkyWikiBaseURL: getEnvString("TINKYWIKI_BASE_URL", "https://codewiki.google"),
			DeepWikiBaseURL:  getEnvString("DEEPWIKI_BASE_URL", "https://deepwiki.com"),
			DeepWikiEnabled:  getEnvBool("DEEPWIKI_ENABLED", true),
			GitHubAPIBaseURL: getEnvString("GITHUB_API_BASE_URL", "https://api.github.com"),
			GitHubAPIEnabled: getEnvBool("GITHUB_API_ENABLED", true),
			GitHubToken:      os.Getenv("GITHUB_TOKEN"),
			FallbackEnabled:  getEnvBool("TINKYWIKI_FALLBACK_ENABLED", true),
		},
		Fetch: FetchConfig{
			HardTimeout:   hardTimeout,
			HTTPTimeout:   httpTimeout,
			MaxRetries:    maxRetries,
			RetryDelay:    retryDelay,
			ElicitTimeout: elicitTimeout,
		},
		Cache: CacheConfig{
			ResolutionTTL: resolutionTTL,
			PageTTL:       pageTTL,
			SearchTTL:     searchTTL,
			TopicTTL:      topicTTL,
		},
		RateLimit: RateLimitConfig{
			MaxCalls: maxCalls,
			Window:   window,
		},
		Response: ResponseConfig{
			MaxChars:      maxChars,
			PreviewChars:  previewChars,
			DefaultLimit:  5,
			MaxLimit:      50,
			ElicitChoices: 6,
		},
	}, nil
}

// MustNew creates settings from environment variables.
// Panics if any variable is invalid. Use this only when configuration
// errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultVal
}

// getEnvDuration reads a duration. Bare integers are treated as seconds
// so that TINKYWIKI_HARD_TIMEOUT=60 and TINKYWIKI_HARD_TIMEOUT=60s are
// equivalent.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
