package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.RetentionMessageDays != 365 || cfg.RetentionWellnessDays != 730 ||
		cfg.RetentionAuditDays != 1095 || cfg.RetentionEscalationDays != 180 {
		t.Fatalf("unexpected retention defaults: %+v", cfg)
	}
	if cfg.SMSRiskThreshold != 0.8 {
		t.Fatalf("SMSRiskThreshold = %v, want 0.8", cfg.SMSRiskThreshold)
	}
	if cfg.ResponderPrimaryURL != "" {
		t.Fatalf("ResponderPrimaryURL = %q, want empty default", cfg.ResponderPrimaryURL)
	}
}

func TestLoadParsesRecipientsAndOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("CONSULTANT_EMAILS", "a@clinic.example, b@clinic.example ,")
	t.Setenv("ONCALL_NUMBERS", "+15550001111")
	t.Setenv("RETENTION_MESSAGE_DAYS", "30")
	t.Setenv("RETENTION_SWEEP_INTERVAL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.ConsultantEmails) != 2 || cfg.ConsultantEmails[1] != "b@clinic.example" {
		t.Fatalf("ConsultantEmails = %v, want two trimmed entries", cfg.ConsultantEmails)
	}
	if len(cfg.OnCallNumbers) != 1 {
		t.Fatalf("OnCallNumbers = %v, want one entry", cfg.OnCallNumbers)
	}
	if cfg.RetentionMessageDays != 30 {
		t.Fatalf("RetentionMessageDays = %d, want 30", cfg.RetentionMessageDays)
	}
	if cfg.RetentionSweepInterval != time.Hour {
		t.Fatalf("RetentionSweepInterval = %v, want 1h", cfg.RetentionSweepInterval)
	}
}

func TestLoadRejectsBadRetentionWindow(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("RETENTION_AUDIT_DAYS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want retention validation error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_AUTH_SECRET",
		"DATABASE_URL",
		"RESPONDER_PRIMARY_URL",
		"RESPONDER_FALLBACK_URL",
		"RESPONDER_MODEL",
		"RESPONDER_TIMEOUT",
		"RETENTION_MESSAGE_DAYS",
		"RETENTION_WELLNESS_DAYS",
		"RETENTION_AUDIT_DAYS",
		"RETENTION_ESCALATION_DAYS",
		"RETENTION_SWEEP_INTERVAL",
		"NOTIFY_WORKERS",
		"NOTIFY_BUFFER_SIZE",
		"NOTIFY_RETRY_ATTEMPTS",
		"CONSULTANT_EMAILS",
		"ONCALL_NUMBERS",
		"SMS_RISK_THRESHOLD",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
