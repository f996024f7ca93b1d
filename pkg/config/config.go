// Package config centralizes the configuration surface consumed by the
// collection pipeline. Values come from the environment with sensible
// defaults; the auth token is supplied out-of-band and never defaulted.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the pipeline consumes.
type Config struct {
	// Upstream API
	GitHubToken   string
	GitHubBaseURL string

	// Optional Redis backing for the rate limiter. Empty addr means
	// in-memory rate limiting only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Concurrency and HTTP behavior
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
	RequestsPerSecond     float64

	// Cache TTLs
	ContentCacheTTL    time.Duration
	MetadataCacheTTL   time.Duration
	CollectionCacheTTL time.Duration

	// Retry policy
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Search limits
	MaxPerPage      int
	MaxTotalResults int

	// Content limits
	MaxFileSize int64

	// Statistics tuning. Downloads are never measured; they are estimated
	// as stars * DownloadEstimationFactor.
	DownloadEstimationFactor     int
	RecentUpdateThresholdDays    int
	ActiveDeveloperThresholdDays int
	MinCategorySize              int

	// Enrichment caps
	MaxContributors int
	MaxCommits      int
}

// Default returns the configuration used when no environment overrides exist.
func Default() Config {
	return Config{
		GitHubBaseURL:                "https://api.github.com",
		MaxConcurrentRequests:        5,
		RequestTimeout:               30 * time.Second,
		RequestsPerSecond:            2,
		ContentCacheTTL:              30 * time.Minute,
		MetadataCacheTTL:             1 * time.Hour,
		CollectionCacheTTL:           6 * time.Hour,
		MaxRetries:                   3,
		RetryBaseDelay:               500 * time.Millisecond,
		RetryMaxDelay:                30 * time.Second,
		MaxPerPage:                   100,
		MaxTotalResults:              1000,
		MaxFileSize:                  1 << 20, // 1 MiB
		DownloadEstimationFactor:     50,
		RecentUpdateThresholdDays:    30,
		ActiveDeveloperThresholdDays: 90,
		MinCategorySize:              2,
		MaxContributors:              30,
		MaxCommits:                   50,
	}
}

// Load builds a Config from the environment on top of the defaults.
func Load() (Config, error) {
	cfg := Default()

	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	cfg.GitHubBaseURL = getEnvOrDefault("GITHUB_BASE_URL", cfg.GitHubBaseURL)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)

	cfg.MaxConcurrentRequests = getEnvInt("MAX_CONCURRENT_REQUESTS", cfg.MaxConcurrentRequests)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RequestsPerSecond = getEnvFloat("REQUESTS_PER_SECOND", cfg.RequestsPerSecond)

	cfg.ContentCacheTTL = getEnvDuration("CONTENT_CACHE_TTL", cfg.ContentCacheTTL)
	cfg.MetadataCacheTTL = getEnvDuration("METADATA_CACHE_TTL", cfg.MetadataCacheTTL)
	cfg.CollectionCacheTTL = getEnvDuration("COLLECTION_CACHE_TTL", cfg.CollectionCacheTTL)

	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryBaseDelay = getEnvDuration("RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.RetryMaxDelay = getEnvDuration("RETRY_MAX_DELAY", cfg.RetryMaxDelay)

	cfg.MaxPerPage = getEnvInt("MAX_PER_PAGE", cfg.MaxPerPage)
	cfg.MaxTotalResults = getEnvInt("MAX_TOTAL_RESULTS", cfg.MaxTotalResults)
	cfg.MaxFileSize = int64(getEnvInt("MAX_FILE_SIZE", int(cfg.MaxFileSize)))

	cfg.DownloadEstimationFactor = getEnvInt("DOWNLOAD_ESTIMATION_FACTOR", cfg.DownloadEstimationFactor)
	cfg.RecentUpdateThresholdDays = getEnvInt("RECENT_UPDATE_THRESHOLD_DAYS", cfg.RecentUpdateThresholdDays)
	cfg.ActiveDeveloperThresholdDays = getEnvInt("ACTIVE_DEVELOPER_THRESHOLD_DAYS", cfg.ActiveDeveloperThresholdDays)
	cfg.MinCategorySize = getEnvInt("MIN_CATEGORY_SIZE", cfg.MinCategorySize)

	cfg.MaxContributors = getEnvInt("MAX_CONTRIBUTORS", cfg.MaxContributors)
	cfg.MaxCommits = getEnvInt("MAX_COMMITS", cfg.MaxCommits)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot operate with.
func (c Config) Validate() error {
	if c.GitHubBaseURL == "" {
		return fmt.Errorf("config: GitHubBaseURL must not be empty")
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("config: MaxConcurrentRequests must be >= 1, got %d", c.MaxConcurrentRequests)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: RequestTimeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MaxRetries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("config: retry delays invalid (base %s, max %s)", c.RetryBaseDelay, c.RetryMaxDelay)
	}
	if c.MaxPerPage < 1 || c.MaxPerPage > 100 {
		return fmt.Errorf("config: MaxPerPage must be in [1,100], got %d", c.MaxPerPage)
	}
	if c.MaxTotalResults < c.MaxPerPage {
		return fmt.Errorf("config: MaxTotalResults must be >= MaxPerPage, got %d", c.MaxTotalResults)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("config: MaxFileSize must be positive, got %d", c.MaxFileSize)
	}
	if c.DownloadEstimationFactor < 0 {
		return fmt.Errorf("config: DownloadEstimationFactor must be >= 0, got %d", c.DownloadEstimationFactor)
	}
	if c.MinCategorySize < 1 {
		return fmt.Errorf("config: MinCategorySize must be >= 1, got %d", c.MinCategorySize)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
