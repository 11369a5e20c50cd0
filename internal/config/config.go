package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting of the bot. Values come from the
// environment with sensible defaults; the feed list itself lives in a
// separate YAML file (see internal/feed).
type Config struct {
	// Telegram settings
	TelegramToken      string
	TelegramChatID     string
	DisableLinkPreview bool

	// Feed settings
	FeedsConfigPath string
	EntriesPerFeed  int // newest entries taken per source
	FetchTimeout    time.Duration

	// Selection settings
	MinScore       int
	MaxPostsPerRun int
	MessageMaxLen  int

	// Dedup store settings
	DatabaseURL   string // Postgres DSN; when empty the SQLite state file is used
	StateDBPath   string
	RetentionDays int

	// App settings
	Debug            bool
	EnableMonitoring bool
	MonitoringPort   string
}

func Load() (*Config, error) {
	cfg := &Config{
		FeedsConfigPath: "configs/feeds.yaml",
		EntriesPerFeed:  3,
		FetchTimeout:    12 * time.Second,
		MinScore:        3,
		MaxPostsPerRun:  1,
		MessageMaxLen:   4096,
		StateDBPath:     "aipost.db",
		RetentionDays:   30,
		MonitoringPort:  "8080",
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.StateDBPath = getEnvOrDefault("STATE_DB_PATH", cfg.StateDBPath)
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)

	cfg.EntriesPerFeed = getEnvIntOrDefault("ENTRIES_PER_FEED", cfg.EntriesPerFeed)
	cfg.MaxPostsPerRun = getEnvIntOrDefault("MAX_POSTS_PER_RUN", cfg.MaxPostsPerRun)
	cfg.MinScore = getEnvIntOrDefault("MIN_SCORE", cfg.MinScore)
	cfg.MessageMaxLen = getEnvIntOrDefault("MESSAGE_MAX_LEN", cfg.MessageMaxLen)
	cfg.RetentionDays = getEnvIntOrDefault("RETENTION_DAYS", cfg.RetentionDays)

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.FetchTimeout = d
		}
	}

	cfg.Debug = os.Getenv("DEBUG") == "true"
	cfg.DisableLinkPreview = os.Getenv("DISABLE_LINK_PREVIEW") == "true"
	cfg.EnableMonitoring = os.Getenv("ENABLE_HTTP_MONITORING") == "true"

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.EntriesPerFeed < 1 || c.EntriesPerFeed > 15 {
		return fmt.Errorf("ENTRIES_PER_FEED must be between 1 and 15, got %d", c.EntriesPerFeed)
	}
	if c.MaxPostsPerRun < 1 || c.MaxPostsPerRun > 3 {
		return fmt.Errorf("MAX_POSTS_PER_RUN must be between 1 and 3, got %d", c.MaxPostsPerRun)
	}
	if c.MinScore < 0 {
		return fmt.Errorf("MIN_SCORE must not be negative, got %d", c.MinScore)
	}
	// 4096 is the Telegram sendMessage ceiling; the sender rejects anything
	// longer, so a larger configured value could never be delivered.
	if c.MessageMaxLen < 512 || c.MessageMaxLen > 4096 {
		return fmt.Errorf("MESSAGE_MAX_LEN must be between 512 and 4096, got %d", c.MessageMaxLen)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	return nil
}
