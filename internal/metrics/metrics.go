// Package metrics counts what a scrape run did. A run is a short-lived
// job, so the registry is written to a node-exporter textfile at the end
// instead of being served.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
)

// Metrics holds the run counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SearchPages   *prometheus.CounterVec
	Details       *prometheus.CounterVec
	Retries       *prometheus.CounterVec
	RowsWritten   prometheus.Counter
	Committed     prometheus.Counter
	Images        *prometheus.CounterVec
	RunsCompleted *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_search_pages_total",
			Help: "Search pages requested, by outcome.",
		}, []string{"outcome"}),
		Details: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_detail_fetches_total",
			Help: "Listing detail fetches, by outcome.",
		}, []string{"outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_request_retries_total",
			Help: "Failed request attempts that were retried, by request kind.",
		}, []string{"kind"}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_rows_written_total",
			Help: "Rows appended to the output file.",
		}),
		Committed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_ids_committed_total",
			Help: "Identifiers appended to the tracking store.",
		}),
		Images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_images_total",
			Help: "Listing images handled, by outcome.",
		}, []string{"outcome"}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Scrape runs, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.SearchPages, m.Details, m.Retries, m.RowsWritten, m.Committed, m.Images, m.RunsCompleted)
	return m
}

func (m *Metrics) SearchPage(outcome string) {
	if m == nil {
		return
	}
	m.SearchPages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Detail(outcome string) {
	if m == nil {
		return
	}
	m.Details.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Retry(kind string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(kind).Inc()
}

func (m *Metrics) Rows(n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(float64(n))
}

func (m *Metrics) Commit() {
	if m == nil {
		return
	}
	m.Committed.Inc()
}

func (m *Metrics) Image(outcome string) {
	if m == nil {
		return
	}
	m.Images.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Run(outcome string) {
	if m == nil {
		return
	}
	m.RunsCompleted.WithLabelValues(outcome).Inc()
}

// WriteFile writes the registry in text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
