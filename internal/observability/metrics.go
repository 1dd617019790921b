package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	Messages           *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
	WellnessLogs       prometheus.Counter
	NotificationSends  *prometheus.CounterVec
	AlertsDropped      prometheus.Counter
	RetentionDeleted   *prometheus.CounterVec
	ResponderFailovers prometheus.Counter
	WSMessages         *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages processed by sender role.",
		}, []string{"role"}),
		Escalations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalations created by risk band.",
		}, []string{"risk_level"}),
		WellnessLogs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wellness_logs_total",
			Help:      "Wellness log entries recorded.",
		}),
		NotificationSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_attempts_total",
			Help:      "Escalation notification attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		AlertsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dropped_total",
			Help:      "Escalation alerts dropped because the queue was full.",
		}),
		RetentionDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Rows removed by retention sweeps, by category.",
		}, []string{"category"}),
		ResponderFailovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responder_failovers_total",
			Help:      "Times the fallback AI backend served a reply after primary failure.",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
