package metrics

import (
	"net/http"
	"time"

	"interview-coach/internal/interview"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 面试服务的 Prometheus 指标，实现 interview.Recorder
type Metrics struct {
	SessionsStarted    *prometheus.CounterVec
	SessionsCompleted  *prometheus.CounterVec
	TurnLatency        *prometheus.HistogramVec
	CompletedUserTurns *prometheus.HistogramVec
	ResumeTextLookups  *prometheus.CounterVec
	CollaboratorErrors *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var _ interview.Recorder = (*Metrics)(nil)

// NewMetrics reg 为 nil 时使用独立的注册表
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Interview sessions started by kind and resume presence.",
		}, []string{"kind", "has_resume"}),
		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Interview sessions completed by kind.",
		}, []string{"kind"}),
		TurnLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end latency of a conversation turn.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"kind"}),
		CompletedUserTurns: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completed_session_user_turns",
			Help:      "User turns in a session at completion.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}, []string{"kind"}),
		ResumeTextLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resume_text_lookups_total",
			Help:      "Resume text resolutions by source (cache, extracted, failed).",
		}, []string{"source"}),
		CollaboratorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Collaborator failures by operation and error kind.",
		}, []string{"op", "kind"}),
		gatherer: reg,
	}
}

func (m *Metrics) SessionStarted(kind interview.Kind, hasResume bool) {
	label := "false"
	if hasResume {
		label = "true"
	}
	m.SessionsStarted.WithLabelValues(string(kind), label).Inc()
}

func (m *Metrics) TurnCompleted(kind interview.Kind, duration time.Duration) {
	m.TurnLatency.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (m *Metrics) SessionCompleted(kind interview.Kind, userTurns int) {
	m.SessionsCompleted.WithLabelValues(string(kind)).Inc()
	m.CompletedUserTurns.WithLabelValues(string(kind)).Observe(float64(userTurns))
}

func (m *Metrics) ResumeTextResolved(source string) {
	m.ResumeTextLookups.WithLabelValues(source).Inc()
}

func (m *Metrics) CollaboratorFailed(op string, kind string) {
	m.CollaboratorErrors.WithLabelValues(op, kind).Inc()
}

// Handler 暴露本注册表的指标
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
