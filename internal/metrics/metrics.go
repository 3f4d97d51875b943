// Package metrics exposes Prometheus counters for scrape runs.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "searchscroll"

// Recorder holds the counters for one process.
type Recorder struct {
	registry *prometheus.Registry

	scrolls   prometheus.Counter
	cooldowns prometheus.Counter
	extracted prometheus.Counter
	written   prometheus.Counter
	runs      *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scrolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrolls_total",
			Help:      "Scroll-to-bottom commands issued.",
		}),
		cooldowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldowns_total",
			Help:      "Cool-down pauses taken by the scroller.",
		}),
		extracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records parsed from timeline markup.",
		}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records written to CSV output.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed scrape runs by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(r.scrolls, r.cooldowns, r.extracted, r.written, r.runs)
	return r
}

func (r *Recorder) ScrollIssued() {
	if r == nil {
		return
	}
	r.scrolls.Inc()
}

func (r *Recorder) CooldownTaken() {
	if r == nil {
		return
	}
	r.cooldowns.Inc()
}

func (r *Recorder) RecordsExtracted(n int) {
	if r == nil {
		return
	}
	r.extracted.Add(float64(n))
}

func (r *Recorder) RecordsWritten(n int) {
	if r == nil {
		return
	}
	r.written.Add(float64(n))
}

// RunFinished counts a run as "ok" when err is nil, "error" otherwise.
func (r *Recorder) RunFinished(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.runs.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
