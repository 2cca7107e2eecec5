package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// MinSecretLength is the minimum accepted length of REPLY_TOKEN_SECRET in bytes.
const MinSecretLength = 32

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL      string
	ReplyTokenSecret string
	ReplyDomain      string
	ReplyDelimiter   string
	HTTPPort         int
	RedisURL         string // Optional; audit events go to the log when empty
	AuditStream      string
	TelegramToken    string // Optional; admin bot and alerts are disabled when empty
	AdminTelegramID  int64
	LogLevel         string
	Environment      string

	CronSpecLifecycle string
	CronSpecWeekly    string
	CronSpecDigest    string

	AnswerWindow time.Duration
	DigestDelay  time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.ReplyTokenSecret = os.Getenv("REPLY_TOKEN_SECRET")
	if cfg.ReplyTokenSecret == "" {
		return nil, fmt.Errorf("REPLY_TOKEN_SECRET is not set")
	}
	if len(cfg.ReplyTokenSecret) < MinSecretLength {
		return nil, fmt.Errorf("REPLY_TOKEN_SECRET must be at least %d bytes", MinSecretLength)
	}

	cfg.ReplyDomain = strings.ToLower(strings.TrimSpace(os.Getenv("REPLY_DOMAIN")))
	if cfg.ReplyDomain == "" {
		return nil, fmt.Errorf("REPLY_DOMAIN is not set")
	}

	cfg.ReplyDelimiter = os.Getenv("REPLY_DELIMITER")

	cfg.HTTPPort = 8080
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		cfg.HTTPPort, err = strconv.Atoi(portStr)
		if err != nil || cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
			return nil, fmt.Errorf("invalid HTTP_PORT: %q", portStr)
		}
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.AuditStream = os.Getenv("AUDIT_STREAM")
	if cfg.AuditStream == "" {
		cfg.AuditStream = "questiond:identification"
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecLifecycle = envOr("CRON_SPEC_LIFECYCLE", "*/15 * * * *") // every 15 minutes
	cfg.CronSpecWeekly = envOr("CRON_SPEC_WEEKLY", "0 9 * * 1")          // Mondays at 9 AM
	cfg.CronSpecDigest = envOr("CRON_SPEC_DIGEST", "0 * * * *")          // hourly

	if cfg.AnswerWindow, err = durationOr("ANSWER_WINDOW", 144*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DigestDelay, err = durationOr("DIGEST_DELAY", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// HTTPAddr is the listen address of the HTTP server.
func (c *AppConfig) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// TelegramEnabled reports whether the admin bot should be started.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.AdminTelegramID != 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
