// Package prom exports session metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/llmstream"
)

// Meter records session counts, durations and fragment totals.
type Meter struct {
	sessions  *prometheus.CounterVec
	results   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	fragments *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	inflight  *prometheus.GaugeVec
}

var _ llmstream.Meter = (*Meter)(nil)

// New creates a Meter and registers its collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Meter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Meter{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Name:      "sessions_started_total",
			Help:      "Streaming sessions started.",
		}, []string{"provider", "model"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Name:      "sessions_finished_total",
			Help:      "Streaming sessions finished, by outcome.",
		}, []string{"provider", "model", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmstream",
			Name:      "session_duration_seconds",
			Help:      "Time from transport start to session end.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "model"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Name:      "fragments_total",
			Help:      "Text fragments delivered to sinks.",
		}, []string{"provider", "model"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Name:      "skipped_lines_total",
			Help:      "Non-empty stream lines that carried no text.",
		}, []string{"provider", "model"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "llmstream",
			Name:      "sessions_inflight",
			Help:      "Sessions currently streaming.",
		}, []string{"provider"}),
	}

	for _, c := range []prometheus.Collector{m.sessions, m.results, m.duration, m.fragments, m.skipped, m.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Meter) OnStart(e llmstream.StartEvent) {
	m.sessions.WithLabelValues(e.Provider, e.Model).Inc()
	m.inflight.WithLabelValues(e.Provider).Inc()
}

func (m *Meter) OnResult(e llmstream.ResultEvent) {
	status := "success"
	if !e.Success {
		status = "error"
	}
	m.inflight.WithLabelValues(e.Provider).Dec()
	m.results.WithLabelValues(e.Provider, e.Model, status).Inc()
	m.duration.WithLabelValues(e.Provider, e.Model).Observe(e.Duration.Seconds())
	m.fragments.WithLabelValues(e.Provider, e.Model).Add(float64(e.Fragments))
	m.skipped.WithLabelValues(e.Provider, e.Model).Add(float64(e.Skipped))
}
