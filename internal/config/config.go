package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string // client CA for mTLS; optional

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// Optional backing services
	DatabaseURL string // story post history; disabled when empty
	RedisURL    string // rate limiter storage; in-memory when empty

	// AdminToken guards the story control API. Empty disables the check in
	// development and locks the API everywhere else.
	AdminToken string

	// Quotes
	QuotesAPIURL    string
	CacheTTL        time.Duration // env: CACHE_TTL, seconds, default 30
	CallGap         time.Duration // env: CALL_GAP, seconds, default 1.2
	UpstreamTimeout time.Duration // env: UPSTREAM_TIMEOUT, seconds, default 10

	// Story poster
	StoryConfigFile  string        // env: STORY_CONFIG_FILE, default "story.yaml"
	FeedTTL          time.Duration // env: FEED_TTL, seconds, default 3600
	TelegramBotToken string
	TelegramAPIURL   string

	// Rate limiting
	RateLimitMax int // requests per minute per IP

	// Site Branding
	SiteTitle   string // env: SITE_TITLE, default: "Quote of the moment"
	SiteTagline string // env: SITE_TAGLINE, default: ""
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		ServerAddr:  getEnv("SERVER_ADDR", ":5001"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:5001"),
		TLSEnabled:  getEnv("TLS_ENABLED", "false") == "true",
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:   getEnv("TLS_CA_FILE", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		QuotesAPIURL:    getEnv("QUOTES_API_URL", "https://quoteslate.vercel.app/api/quotes/random"),
		CacheTTL:        getSeconds("CACHE_TTL", 30),
		CallGap:         getSeconds("CALL_GAP", 1.2),
		UpstreamTimeout: getSeconds("UPSTREAM_TIMEOUT", 10),

		StoryConfigFile:  getEnv("STORY_CONFIG_FILE", "story.yaml"),
		FeedTTL:          getSeconds("FEED_TTL", 3600),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),

		RateLimitMax: getInt("RATE_LIMIT_MAX", 100),

		SiteTitle:   getEnv("SITE_TITLE", "Quote of the moment"),
		SiteTagline: getEnv("SITE_TAGLINE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getSeconds parses a (possibly fractional) number of seconds.
func getSeconds(key string, fallback float64) time.Duration {
	secs := fallback
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			secs = v
		}
	}
	return time.Duration(secs * float64(time.Second))
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// HistoryEnabled returns true if story posts are recorded in Postgres.
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}
