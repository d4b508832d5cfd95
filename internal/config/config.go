package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	ModerationSchedule string // "hourly" or "daily"
	TimeZone           string

	// Document store configuration
	FirestoreProjectID string
	FirestoreAPIKey    string
	FirestoreBaseURL   string
	PoolSize           int

	// Azure Storage configuration
	StorageAccount   string
	StorageContainer string
	LocalStorageDir  string // used when no storage account is set

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Rules and moderation
	RulesFile        string
	ExtraSpamPhrases []string

	// Pipeline tuning
	CacheMaxEntries int
	DiversityWeight float64
	NoveltyWeight   float64
	DefaultLimit    int
	MaxLimit        int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Debug:              getBoolEnv("DEBUG", false),
		ModerationSchedule: getEnv("MODERATION_SCHEDULE", "daily"),
		TimeZone:           getEnv("TIMEZONE", "UTC"),

		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreAPIKey:    getEnv("FIRESTORE_API_KEY", ""),
		FirestoreBaseURL:   getEnv("FIRESTORE_BASE_URL", "https://firestore.googleapis.com/v1"),
		PoolSize:           getIntEnv("POOL_SIZE", 200),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "recommendations"),
		LocalStorageDir:  getEnv("LOCAL_STORAGE_DIR", "archive"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		RulesFile:        getEnv("RULES_FILE", ""),
		ExtraSpamPhrases: getSliceEnv("EXTRA_SPAM_PHRASES", nil),

		CacheMaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 100),
		DiversityWeight: getFloatEnv("DIVERSITY_WEIGHT", 0.3),
		NoveltyWeight:   getFloatEnv("NOVELTY_WEIGHT", 0.2),
		DefaultLimit:    getIntEnv("DEFAULT_LIMIT", 10),
		MaxLimit:        getIntEnv("MAX_LIMIT", 50),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ModerationSchedule != "hourly" && c.ModerationSchedule != "daily" {
		return fmt.Errorf("MODERATION_SCHEDULE must be 'hourly' or 'daily'")
	}

	if c.FirestoreProjectID == "" {
		return fmt.Errorf("FIRESTORE_PROJECT_ID is required")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive")
	}

	if c.DefaultLimit <= 0 || c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("DEFAULT_LIMIT must be positive and not exceed MAX_LIMIT")
	}

	if c.DiversityWeight < 0 || c.NoveltyWeight < 0 {
		return fmt.Errorf("DIVERSITY_WEIGHT and NOVELTY_WEIGHT must not be negative")
	}

	return nil
}

// NotificationsEnabled reports whether any moderation digest channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
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

// getSliceEnv splits a comma-separated variable, trimming blanks
func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
