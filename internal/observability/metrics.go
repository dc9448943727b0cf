package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveConversations prometheus.Gauge
	ConversationEvents  *prometheus.CounterVec
	Prompts             *prometheus.CounterVec
	Responses           *prometheus.CounterVec
	Terminations        *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	SessionEvents       *prometheus.CounterVec
	WSMessages          *prometheus.CounterVec
	OutboundMessages    *prometheus.CounterVec
	ScriptDuration      prometheus.Histogram

	latency *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConversations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Number of running NPC conversations.",
		}),
		ConversationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_events_total",
			Help:      "Conversation lifecycle events by type.",
		}, []string{"event"}),
		Prompts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_total",
			Help:      "Dialog prompts sent by kind.",
		}, []string{"kind"}),
		Responses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Dialog responses by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Terminations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Conversation terminations by reason.",
		}, []string{"reason"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active player sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Player session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		OutboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound frame queue results.",
		}, []string{"result"}),
		ScriptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "script_duration_seconds",
			Help:      "Time a script runs between two prompts.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		latency: newLatencyWindow(256),
	}
}

func (m *Metrics) ConversationStarted() {
	if m == nil {
		return
	}
	m.ActiveConversations.Inc()
	m.ConversationEvents.WithLabelValues("started").Inc()
}

func (m *Metrics) ConversationEnded(reason string) {
	if m == nil {
		return
	}
	m.ActiveConversations.Dec()
	m.ConversationEvents.WithLabelValues("ended").Inc()
	m.Terminations.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObservePrompt(kind string) {
	if m == nil {
		return
	}
	m.Prompts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveResponse(kind, outcome string) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(kind, outcome).Inc()
}

// ObserveResponseLatency records the time between a prompt and its answer.
func (m *Metrics) ObserveResponseLatency(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(kind, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveScriptStretch(d time.Duration) {
	if m == nil {
		return
	}
	m.ScriptDuration.Observe(d.Seconds())
	m.latency.Observe("script_stretch", float64(d.Microseconds())/1000)
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) WSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) Outbound(result string) {
	if m == nil {
		return
	}
	m.OutboundMessages.WithLabelValues(result).Inc()
	if result != "sent" {
		m.latency.ObserveIndicator("outbound_" + result)
	}
}

func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Stages: []LatencyStats{}}
	}
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
