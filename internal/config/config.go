package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	IngestSchedule string // six-field cron spec or descriptor, "off" disables scheduled snapshots
	TimeZone       string

	// Storage configuration
	StorageBackend   string // "azure" or "local"
	StorageAccount   string
	StorageContainer string
	LocalStorageDir  string

	// Trend ingestion
	TrendTags          []string
	TrendLookbackHours int
	RedditClientID     string
	RedditClientSecret string

	// Media generation
	MediaBackendURL       string
	MediaBackendAPIKey    string
	MediaDefaultBudgetUSD float64

	// Publishing channels
	TeamsWebhookURL          string
	TeamsStagingWebhookURL   string
	NotificationEmail        string
	StagingNotificationEmail string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Debug:          getBoolEnv("DEBUG", false),
		IngestSchedule: getEnv("INGEST_SCHEDULE", "0 0 */4 * * *"),
		TimeZone:       getEnv("TIMEZONE", "UTC"),

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "trend-skills"),
		LocalStorageDir:  getEnv("LOCAL_STORAGE_DIR", "data"),

		TrendTags:          getSliceEnv("TREND_TAGS", []string{"ai", "kubernetes", "golang"}),
		TrendLookbackHours: getIntEnv("TREND_LOOKBACK_HOURS", 24),
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),

		MediaBackendURL:       getEnv("MEDIA_BACKEND_URL", ""),
		MediaBackendAPIKey:    getEnv("MEDIA_BACKEND_API_KEY", ""),
		MediaDefaultBudgetUSD: getFloatEnv("MEDIA_DEFAULT_BUDGET_USD", 1.0),

		TeamsWebhookURL:          getEnv("TEAMS_WEBHOOK_URL", ""),
		TeamsStagingWebhookURL:   getEnv("TEAMS_STAGING_WEBHOOK_URL", ""),
		NotificationEmail:        getEnv("NOTIFICATION_EMAIL", ""),
		StagingNotificationEmail: getEnv("STAGING_NOTIFICATION_EMAIL", ""),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 getIntEnv("SMTP_PORT", 587),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
	}

	if strings.EqualFold(cfg.IngestSchedule, "off") {
		cfg.IngestSchedule = ""
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.StorageBackend != "azure" && c.StorageBackend != "local" {
		return fmt.Errorf("STORAGE_BACKEND must be 'azure' or 'local'")
	}

	if c.StorageBackend == "azure" && c.StorageAccount == "" {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is 'azure'")
	}

	if c.TrendLookbackHours <= 0 {
		return fmt.Errorf("TREND_LOOKBACK_HOURS must be positive")
	}

	if c.MediaDefaultBudgetUSD < 0 {
		return fmt.Errorf("MEDIA_DEFAULT_BUDGET_USD must not be negative")
	}

	if c.IngestSchedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.IngestSchedule); err != nil {
			return fmt.Errorf("INGEST_SCHEDULE is not a valid cron spec: %w", err)
		}
	}

	if c.NotificationEmail != "" || c.StagingNotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL or STAGING_NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
