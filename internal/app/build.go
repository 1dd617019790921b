package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/calmlinehq/calmline/internal/config"
	"github.com/calmlinehq/calmline/internal/guardrail"
	"github.com/calmlinehq/calmline/internal/httpapi"
	"github.com/calmlinehq/calmline/internal/lexicon"
	"github.com/calmlinehq/calmline/internal/notify"
	"github.com/calmlinehq/calmline/internal/observability"
	"github.com/calmlinehq/calmline/internal/responder"
	"github.com/calmlinehq/calmline/internal/retention"
	"github.com/calmlinehq/calmline/internal/session"
	"github.com/calmlinehq/calmline/internal/store"
	"github.com/calmlinehq/calmline/internal/triage"
)

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Sessions   *session.Manager
	Triage     *triage.Service
	Dispatcher *notify.Dispatcher
	Sweeper    *retention.Sweeper
	Metrics    *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, workers, etc).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	lex := lexicon.Default()
	filter := guardrail.New(lex)

	notifyCfg := notify.DefaultConfig()
	notifyCfg.Workers = cfg.NotifyWorkers
	notifyCfg.BufferSize = cfg.NotifyBufferSize
	notifyCfg.RetryAttempts = cfg.NotifyRetryAttempts
	notifyCfg.ConsultantEmails = cfg.ConsultantEmails
	notifyCfg.OnCallNumbers = cfg.OnCallNumbers
	notifyCfg.SMSThreshold = cfg.SMSRiskThreshold
	dispatcher := notify.NewDispatcher(notifyCfg, notify.LogEmailProvider{}, notify.LogSMSProvider{}, metrics)

	triageSvc := triage.NewService(st, filter, lex, dispatcher, metrics)

	sweeper, err := retention.NewSweeper(st, retention.Policy{
		MessageDays:    cfg.RetentionMessageDays,
		WellnessDays:   cfg.RetentionWellnessDays,
		AuditDays:      cfg.RetentionAuditDays,
		EscalationDays: cfg.RetentionEscalationDays,
	}, metrics)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("retention sweeper init failed: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	backend := responder.New(responder.Config{
		PrimaryURL:  cfg.ResponderPrimaryURL,
		FallbackURL: cfg.ResponderFallbackURL,
		Model:       cfg.ResponderModel,
	}, func() {
		metrics.ResponderFailovers.Inc()
	})

	api := httpapi.New(cfg, sessions, triageSvc, backend, filter, sweeper, st, metrics)

	cleanup := func() error {
		var errs []string
		dispatcher.Stop()
		if err := st.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Sessions:   sessions,
		Triage:     triageSvc,
		Dispatcher: dispatcher,
		Sweeper:    sweeper,
		Metrics:    metrics,
		Cleanup:    cleanup,
	}, nil
}
