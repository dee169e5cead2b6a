// Package metrics exposes poller activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fakeyudi/typetrace/internal/change"
)

// Recorder owns an independent registry so several pollers (and tests) can
// coexist in one process. A nil *Recorder discards everything.
type Recorder struct {
	registry      *prometheus.Registry
	polls         prometheus.Counter
	fetchFailures prometheus.Counter
	changes       *prometheus.CounterVec
	charsChanged  prometheus.Counter
	lastCPS       prometheus.Gauge
	historySize   prometheus.Gauge
	logging       prometheus.Gauge
}

// New registers the typetrace collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "typetrace",
			Name:      "polls_total",
			Help:      "Completed document poll attempts.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "typetrace",
			Name:      "fetch_failures_total",
			Help:      "Poll attempts abandoned because the document could not be read.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "typetrace",
			Name:      "changes_total",
			Help:      "Recorded document changes by type.",
		}, []string{"type"}),
		charsChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "typetrace",
			Name:      "chars_changed_total",
			Help:      "Characters judged changed across all recorded changes.",
		}),
		lastCPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "typetrace",
			Name:      "last_cps",
			Help:      "Characters per second of the most recent change.",
		}),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "typetrace",
			Name:      "history_size",
			Help:      "Change records currently held.",
		}),
		logging: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "typetrace",
			Name:      "logging",
			Help:      "1 while the poller is logging, 0 otherwise.",
		}),
	}
	r.registry.MustRegister(r.polls, r.fetchFailures, r.changes, r.charsChanged,
		r.lastCPS, r.historySize, r.logging)
	return r
}

// Handler serves the /metrics scrape endpoint.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Poll() {
	if r != nil {
		r.polls.Inc()
	}
}

func (r *Recorder) FetchFailed() {
	if r != nil {
		r.fetchFailures.Inc()
	}
}

// Change records one classified change and the resulting history size.
func (r *Recorder) Change(rec change.Record, historySize int) {
	if r == nil {
		return
	}
	r.changes.WithLabelValues(string(rec.ChangeType)).Inc()
	r.charsChanged.Add(float64(rec.ChangeLength))
	r.lastCPS.Set(rec.CPS)
	r.historySize.Set(float64(historySize))
}

func (r *Recorder) HistorySize(n int) {
	if r != nil {
		r.historySize.Set(float64(n))
	}
}

func (r *Recorder) Logging(on bool) {
	if r == nil {
		return
	}
	if on {
		r.logging.Set(1)
	} else {
		r.logging.Set(0)
	}
}
