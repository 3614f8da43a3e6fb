package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultAlertPhone = "+919082944120"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Spike rule
	AlertThreshold  int
	WindowMinutes   int
	CooldownMinutes int

	// SMS gateway
	NotificationsEnabled bool
	NotifyPhoneNumber    string
	SMSGatewayURL        string
	SMSGatewayKey        string
	SMSTimeout           time.Duration

	// Engine runtime
	DatabasePath      string
	ItineraryCSVPath  string
	EvaluationTimeout time.Duration
	WorkerCount       int
	QueueSize         int

	// Complaint events
	AMQPURL        string
	ComplaintQueue string

	// Audit trail export
	ArchiveSchedule      string
	ArchiveRetentionDays int
	StorageAccount       string
	StorageContainer     string

	// Digest email
	DigestEmail  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		AlertThreshold:  getPositiveIntEnv("TRAIN_COMPLAINT_ALERT_THRESHOLD", 3),
		WindowMinutes:   getPositiveIntEnv("TRAIN_COMPLAINT_ALERT_WINDOW_MINUTES", 60),
		CooldownMinutes: getPositiveIntEnv("TRAIN_COMPLAINT_ALERT_COOLDOWN_MINUTES", 30),

		NotificationsEnabled: getBoolEnv("TRAIN_COMPLAINT_SMS_ENABLED", true),
		NotifyPhoneNumber:    getEnv("TRAIN_COMPLAINT_ALERT_PHONE", defaultAlertPhone),
		SMSGatewayURL:        getEnv("TEXTBELT_API_URL", "https://textbelt.com/text"),
		SMSGatewayKey:        getEnv("TEXTBELT_API_KEY", "textbelt"),
		SMSTimeout:           time.Duration(getPositiveIntEnv("SMS_TIMEOUT_SECONDS", 10)) * time.Second,

		DatabasePath:      getEnv("DATABASE_PATH", "data/train-alerts.db"),
		ItineraryCSVPath:  getEnv("ITINERARY_CSV_PATH", "data/Train_details_22122017.csv"),
		EvaluationTimeout: time.Duration(getPositiveIntEnv("EVALUATION_TIMEOUT_SECONDS", 30)) * time.Second,
		WorkerCount:       getPositiveIntEnv("WORKER_COUNT", 4),
		QueueSize:         getPositiveIntEnv("QUEUE_SIZE", 256),

		AMQPURL:        getEnv("AMQP_URL", ""),
		ComplaintQueue: getEnv("COMPLAINT_QUEUE", "complaint.created"),

		ArchiveSchedule:      getEnv("ARCHIVE_SCHEDULE", "0 0 2 * * *"),
		ArchiveRetentionDays: getPositiveIntEnv("ARCHIVE_RETENTION_DAYS", 30),
		StorageAccount:       getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer:     getEnv("AZURE_STORAGE_CONTAINER", "train-alerts"),

		DigestEmail:  getEnv("DIGEST_EMAIL", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.NotifyPhoneNumber) == "" {
		return fmt.Errorf("TRAIN_COMPLAINT_ALERT_PHONE must not be empty")
	}

	if c.NotificationsEnabled && c.SMSGatewayURL == "" {
		return fmt.Errorf("TEXTBELT_API_URL is required when SMS notifications are enabled")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.ArchiveSchedule); err != nil {
		return fmt.Errorf("ARCHIVE_SCHEDULE is not a valid cron expression: %w", err)
	}

	if c.DigestEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when DIGEST_EMAIL is set")
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

// getPositiveIntEnv falls back to the default for zero, negative or unparsable values
func getPositiveIntEnv(key string, defaultValue int) int {
	if parsed := getIntEnv(key, defaultValue); parsed > 0 {
		return parsed
	}
	return defaultValue
}
