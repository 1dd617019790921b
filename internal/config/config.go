package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat triage service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool
	SessionInactivityTimeout time.Duration

	DatabaseURL string

	AuthSecret string

	ResponderPrimaryURL  string
	ResponderFallbackURL string
	ResponderModel       string
	ResponderTimeout     time.Duration

	RetentionMessageDays    int
	RetentionWellnessDays   int
	RetentionAuditDays      int
	RetentionEscalationDays int
	RetentionSweepInterval  time.Duration

	NotifyWorkers       int
	NotifyBufferSize    int
	NotifyRetryAttempts int
	ConsultantEmails    []string
	OnCallNumbers       []string
	SMSRiskThreshold    float64
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "calmline"),
		AllowAnyOrigin:           false,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		AuthSecret:               stringsTrimSpace("APP_AUTH_SECRET"),
		ResponderPrimaryURL:      stringsTrimSpace("RESPONDER_PRIMARY_URL"),
		ResponderFallbackURL:     stringsTrimSpace("RESPONDER_FALLBACK_URL"),
		ResponderModel:           envOrDefault("RESPONDER_MODEL", "llama3"),
		ResponderTimeout:         60 * time.Second,
		RetentionMessageDays:     365,
		RetentionWellnessDays:    730,
		RetentionAuditDays:       1095,
		RetentionEscalationDays:  180,
		RetentionSweepInterval:   24 * time.Hour,
		NotifyWorkers:            2,
		NotifyBufferSize:         256,
		NotifyRetryAttempts:      3,
		ConsultantEmails:         splitList(os.Getenv("CONSULTANT_EMAILS")),
		OnCallNumbers:            splitList(os.Getenv("ONCALL_NUMBERS")),
		SMSRiskThreshold:         0.8,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ResponderTimeout, err = durationFromEnv("RESPONDER_TIMEOUT", cfg.ResponderTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionSweepInterval, err = durationFromEnv("RETENTION_SWEEP_INTERVAL", cfg.RetentionSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.RetentionMessageDays, err = intFromEnv("RETENTION_MESSAGE_DAYS", cfg.RetentionMessageDays)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionWellnessDays, err = intFromEnv("RETENTION_WELLNESS_DAYS", cfg.RetentionWellnessDays)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionAuditDays, err = intFromEnv("RETENTION_AUDIT_DAYS", cfg.RetentionAuditDays)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionEscalationDays, err = intFromEnv("RETENTION_ESCALATION_DAYS", cfg.RetentionEscalationDays)
	if err != nil {
		return Config{}, err
	}
	cfg.NotifyWorkers, err = intFromEnv("NOTIFY_WORKERS", cfg.NotifyWorkers)
	if err != nil {
		return Config{}, err
	}
	cfg.NotifyBufferSize, err = intFromEnv("NOTIFY_BUFFER_SIZE", cfg.NotifyBufferSize)
	if err != nil {
		return Config{}, err
	}
	cfg.NotifyRetryAttempts, err = intFromEnv("NOTIFY_RETRY_ATTEMPTS", cfg.NotifyRetryAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.SMSRiskThreshold, err = floatFromEnv("SMS_RISK_THRESHOLD", cfg.SMSRiskThreshold)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.RetentionMessageDays <= 0 || cfg.RetentionWellnessDays <= 0 ||
		cfg.RetentionAuditDays <= 0 || cfg.RetentionEscalationDays <= 0 {
		return Config{}, fmt.Errorf("retention windows must be positive")
	}
	if cfg.NotifyWorkers <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if cfg.NotifyBufferSize <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_BUFFER_SIZE must be positive")
	}
	if cfg.NotifyRetryAttempts < 0 {
		return Config{}, fmt.Errorf("NOTIFY_RETRY_ATTEMPTS must be >= 0")
	}
	if cfg.SMSRiskThreshold < 0 || cfg.SMSRiskThreshold > 1 {
		return Config{}, fmt.Errorf("SMS_RISK_THRESHOLD must be in [0,1]")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := []string{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
