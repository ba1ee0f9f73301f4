// Package config provides application configuration loaded from environment
// variables, with optional .env support for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. Load it once at startup.
type Config struct {
	// LogLevel is the logrus level name (debug, info, warn, error).
	LogLevel string

	// BaseCurrency is the currency portfolio totals and notifications are
	// expressed in.
	BaseCurrency string

	// DBConnStr is the PostgreSQL connection string for the event log.
	// Empty selects the in-memory log.
	DBConnStr string

	// MarketData configures the quote API client.
	MarketData MarketDataConfig

	// PriceFeed configures the websocket price stream. An empty URL disables
	// the feed.
	PriceFeed PriceFeedConfig

	// NotifyWebhookURL is the notification endpoint. Empty disables
	// notifications.
	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// MaxPriceAge is how old a cached price may be before the provider is
	// consulted again during valuation.
	MaxPriceAge time.Duration

	// LookupTimeout bounds each market-data call made during valuation.
	LookupTimeout time.Duration
}

// MarketDataConfig holds quote API settings.
type MarketDataConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// PriceFeedConfig holds websocket feed settings.
type PriceFeedConfig struct {
	URL     string
	Symbols []string
	Source  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present (local runs); real deployments set the
// variables directly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BaseCurrency:     getEnv("BASE_CURRENCY", "USD"),
		DBConnStr:        buildDBConnStr(),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyTimeout:    getDuration("NOTIFY_TIMEOUT", 5*time.Second),
		MaxPriceAge:      getDuration("PRICE_MAX_AGE", 15*time.Minute),
		LookupTimeout:    getDuration("PRICE_LOOKUP_TIMEOUT", 3*time.Second),
		MarketData: MarketDataConfig{
			BaseURL:           getEnv("MARKET_DATA_URL", "https://quotes.example.com"),
			APIKey:            getEnv("MARKET_DATA_API_KEY", ""),
			RequestsPerSecond: getFloat("MARKET_DATA_RPS", 10),
			Timeout:           getDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
		},
		PriceFeed: PriceFeedConfig{
			URL:     getEnv("PRICE_FEED_URL", ""),
			Symbols: getList("PRICE_FEED_SYMBOLS"),
			Source:  getEnv("PRICE_FEED_SOURCE", "feed"),
		},
	}
	return cfg, nil
}

// buildDBConnStr returns DB_CONN_STR when set, otherwise assembles a
// connection string from individual DB_* variables; all empty means no
// database.
func buildDBConnStr() string {
	if s := os.Getenv("DB_CONN_STR"); s != "" {
		return s
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "foliotrack")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getDuration parses a Go duration string from the environment.
func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// getFloat parses a float from the environment.
func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getList parses a comma-separated list from the environment.
func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
