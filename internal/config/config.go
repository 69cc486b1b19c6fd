package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/structuredesk/riskwatch/internal/secrets"
)

// Config holds all process-level configuration. Business rules (keyword
// tables, priority bands, routing) live in the rules file, not here.
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Rules file (empty = built-in defaults, no hot reload)
	RulesPath string

	// Pipeline
	EventWorkers      int
	AssessWorkers     int // per-event trade assessment parallelism
	QueueDepth        int
	ProcessingBudget  time.Duration
	MaxEventRetries   int // repository-unavailable requeues before quarantine
	EventRetryBackoff time.Duration

	// Distribution retry policy
	DeliveryMaxAttempts int
	DeliveryBackoffBase time.Duration

	// Feed ingress (pull mode; empty base URL disables polling)
	FeedBaseURL      string
	FeedPollInterval time.Duration
	FeedRPS          float64

	// Channel sinks
	ChannelMode  string // log, webhook, smtp (comma-separated)
	WebhookURL   string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       []string

	// HTTP (health + metrics + push ingress)
	HTTPPort int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		DatabaseDSN:         getEnv("DATABASE_DSN", "riskwatch:riskwatch@tcp(mysql:3306)/riskwatch?parseTime=true"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		RulesPath:           getEnv("RULES_PATH", ""),
		EventWorkers:        getEnvInt("EVENT_WORKERS", 4),
		AssessWorkers:       getEnvInt("ASSESS_WORKERS", 8),
		QueueDepth:          getEnvInt("QUEUE_DEPTH", 256),
		ProcessingBudget:    time.Duration(getEnvInt("PROCESSING_BUDGET_MS", 2000)) * time.Millisecond,
		MaxEventRetries:     getEnvInt("MAX_EVENT_RETRIES", 3),
		EventRetryBackoff:   time.Duration(getEnvInt("EVENT_RETRY_BACKOFF_SEC", 5)) * time.Second,
		DeliveryMaxAttempts: getEnvInt("DELIVERY_MAX_ATTEMPTS", 3),
		DeliveryBackoffBase: time.Duration(getEnvInt("DELIVERY_BACKOFF_BASE_MS", 500)) * time.Millisecond,
		FeedBaseURL:         getEnv("FEED_BASE_URL", ""),
		FeedPollInterval:    time.Duration(getEnvInt("FEED_POLL_INTERVAL_SEC", 15)) * time.Second,
		FeedRPS:             getEnvFloat("FEED_RPS", 2.0),
		ChannelMode:         getEnv("CHANNEL_MODE", "log"),
		WebhookURL:          secrets.GetOptional("WEBHOOK_URL", ""),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        secrets.GetOptional("SMTP_PASSWORD", ""),
		SMTPFrom:            getEnv("SMTP_FROM", "riskwatch@example.com"),
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
	}

	if to := getEnv("SMTP_TO", ""); to != "" {
		for _, addr := range strings.Split(to, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.SMTPTo = append(cfg.SMTPTo, addr)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.EventWorkers <= 0 {
		return fmt.Errorf("EVENT_WORKERS must be positive")
	}
	if c.AssessWorkers <= 0 {
		return fmt.Errorf("ASSESS_WORKERS must be positive")
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("QUEUE_DEPTH must be positive")
	}
	if c.DeliveryMaxAttempts <= 0 {
		return fmt.Errorf("DELIVERY_MAX_ATTEMPTS must be positive")
	}

	for _, mode := range strings.Split(c.ChannelMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
		case "webhook":
			if c.WebhookURL == "" {
				return fmt.Errorf("WEBHOOK_URL is required when webhook is in CHANNEL_MODE")
			}
		case "smtp":
			if c.SMTPHost == "" {
				return fmt.Errorf("SMTP_HOST is required when smtp is in CHANNEL_MODE")
			}
		default:
			return fmt.Errorf("invalid CHANNEL_MODE value: %s (valid values: log, webhook, smtp)", mode)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
