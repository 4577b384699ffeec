package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	MessagesSent           *prometheus.CounterVec
	VotesCast              *prometheus.CounterVec
	NotificationsDelivered prometheus.Counter
	OutboxLag              prometheus.Histogram
	RelayErrors            prometheus.Counter
	RankingFallbacks       *prometheus.CounterVec
	ActiveStreams          *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minglr_messages_sent_total",
			Help: "Chat messages stored, by channel kind and whether they carry a poll",
		}, []string{"channel", "poll"}),
		VotesCast: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minglr_poll_votes_total",
			Help: "Poll votes applied, by poll kind",
		}, []string{"kind"}),
		NotificationsDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "minglr_notifications_delivered_total",
			Help: "Notifications written by the outbox relay",
		}),
		OutboxLag: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "minglr_outbox_lag_seconds",
			Help:    "Time between an outbox event being written and delivered",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RelayErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "minglr_outbox_relay_errors_total",
			Help: "Outbox events the relay failed to deliver",
		}),
		RankingFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minglr_ranking_fallbacks_total",
			Help: "Ranking requests answered with the default order, by reason",
		}, []string{"reason"}),
		ActiveStreams: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "minglr_active_streams",
			Help: "Open websocket streams, by stream name",
		}, []string{"stream"}),
	}
}

// The helpers below are safe on a nil *Metrics so callers can leave metrics unset.

func (m *Metrics) IncMessagesSent(channel string, withPoll bool) {
	if m == nil {
		return
	}
	poll := "false"
	if withPoll {
		poll = "true"
	}
	m.MessagesSent.WithLabelValues(channel, poll).Inc()
}

func (m *Metrics) IncVotesCast(kind string) {
	if m == nil {
		return
	}
	m.VotesCast.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDelivery(written, delivered time.Time, notifications int) {
	if m == nil {
		return
	}
	m.NotificationsDelivered.Add(float64(notifications))
	m.OutboxLag.Observe(delivered.Sub(written).Seconds())
}

func (m *Metrics) IncRelayErrors() {
	if m == nil {
		return
	}
	m.RelayErrors.Inc()
}

func (m *Metrics) IncRankingFallback(reason string) {
	if m == nil {
		return
	}
	m.RankingFallbacks.WithLabelValues(reason).Inc()
}

// TrackStream counts an open stream until the returned func is called.
func (m *Metrics) TrackStream(stream string) func() {
	if m == nil {
		return func() {}
	}
	g := m.ActiveStreams.WithLabelValues(stream)
	g.Inc()
	return g.Dec
}
