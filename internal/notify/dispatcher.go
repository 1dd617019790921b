package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/calmlinehq/calmline/internal/observability"
	"github.com/calmlinehq/calmline/internal/reliability"
)

// Config holds dispatcher settings and alert recipients.
type Config struct {
	Workers          int
	BufferSize       int
	RetryAttempts    int
	RetryBase        time.Duration
	RetryCap         time.Duration
	ConsultantEmails []string
	OnCallNumbers    []string
	// SMSThreshold is the risk score at or above which SMS is sent in
	// addition to email.
	SMSThreshold float64
	SendTimeout  time.Duration
}

// DefaultConfig returns dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       2,
		BufferSize:    256,
		RetryAttempts: 3,
		RetryBase:     500 * time.Millisecond,
		RetryCap:      10 * time.Second,
		SMSThreshold:  0.8,
		SendTimeout:   15 * time.Second,
	}
}

// Dispatcher delivers escalation alerts asynchronously through a bounded
// queue and a small worker pool.
type Dispatcher struct {
	cfg     Config
	email   EmailProvider
	sms     SMSProvider
	metrics *observability.Metrics

	alerts chan EscalationAlert
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

func NewDispatcher(cfg Config, email EmailProvider, sms SMSProvider, metrics *observability.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &Dispatcher{
		cfg:     cfg,
		email:   email,
		sms:     sms,
		metrics: metrics,
		alerts:  make(chan EscalationAlert, cfg.BufferSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop drains no further work and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
}

// Enqueue hands an alert to the delivery queue without blocking. A full
// queue drops the alert; the message and audit writes it belongs to have
// already committed and are unaffected.
func (d *Dispatcher) Enqueue(alert EscalationAlert) bool {
	select {
	case d.alerts <- alert:
		return true
	default:
		if d.metrics != nil {
			d.metrics.AlertsDropped.Inc()
		}
		log.Printf("notify: alert queue full, dropped alert for message %s", alert.MessageID)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case alert := <-d.alerts:
					d.deliver(alert)
				default:
					return
				}
			}
		case alert := <-d.alerts:
			d.deliver(alert)
		}
	}
}

func (d *Dispatcher) deliver(alert EscalationAlert) {
	for _, to := range d.cfg.ConsultantEmails {
		d.attempt("email", alert.MessageID, func(ctx context.Context) error {
			return d.email.SendEmail(ctx, to, alert.Subject(), alert.Body())
		})
	}
	if alert.RiskScore >= d.cfg.SMSThreshold {
		for _, to := range d.cfg.OnCallNumbers {
			d.attempt("sms", alert.MessageID, func(ctx context.Context) error {
				return d.sms.SendSMS(ctx, to, alert.SMSBody())
			})
		}
	}
}

// attempt retries a single delivery with capped exponential backoff. All
// failures end in a log line and a metric, never an error to the caller.
func (d *Dispatcher) attempt(channel, messageID string, send func(context.Context) error) {
	var lastErr error
	for i := 0; i <= d.cfg.RetryAttempts; i++ {
		if i > 0 {
			time.Sleep(reliability.ExponentialBackoff(i-1, d.cfg.RetryBase, d.cfg.RetryCap))
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := send(ctx)
		cancel()
		if err == nil {
			if d.metrics != nil {
				d.metrics.NotificationSends.WithLabelValues(channel, "ok").Inc()
			}
			return
		}
		lastErr = err
	}
	if d.metrics != nil {
		d.metrics.NotificationSends.WithLabelValues(channel, "failed").Inc()
	}
	log.Printf("notify: %s delivery failed for message %s: %v", channel, messageID, lastErr)
}
