// Package metrics exposes triage counters on a private registry, written out for
// the node-exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

type TriageMetrics struct {
	registry *prometheus.Registry

	documentsTotal     *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionFailures *prometheus.CounterVec
	moveFailures       prometheus.Counter
	lastRun            prometheus.Gauge
}

func NewTriageMetrics() *TriageMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_triage",
			Name:      "documents_total",
			Help:      "Documents routed, by decision.",
		},
		[]string{"decision"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invoice_triage",
			Name:      "extraction_duration_seconds",
			Help:      "Text extraction duration in seconds, by document format.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"format"},
	)
	extractionFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_triage",
			Name:      "extraction_failures_total",
			Help:      "Documents whose text could not be extracted, by format.",
		},
		[]string{"format"},
	)
	moveFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoice_triage",
			Name:      "move_failures_total",
			Help:      "Documents that could not be moved to their destination folder.",
		},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invoice_triage",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last triage run finished.",
		},
	)

	registry.MustRegister(documentsTotal, extractionDuration, extractionFailures, moveFailures, lastRun)

	// zero series for every decision so dashboards see them before the first hit
	for _, d := range constants.AllDecisions {
		documentsTotal.WithLabelValues(string(d))
	}

	return &TriageMetrics{
		registry:           registry,
		documentsTotal:     documentsTotal,
		extractionDuration: extractionDuration,
		extractionFailures: extractionFailures,
		moveFailures:       moveFailures,
		lastRun:            lastRun,
	}
}

func (m *TriageMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *TriageMetrics) ObserveExtraction(format constants.Format, d time.Duration, failed bool) {
	f := string(format)
	if f == "" {
		f = "unknown"
	}
	m.extractionDuration.WithLabelValues(f).Observe(d.Seconds())
	if failed {
		m.extractionFailures.WithLabelValues(f).Inc()
	}
}

func (m *TriageMetrics) ObserveDecision(d constants.Decision) {
	m.documentsTotal.WithLabelValues(string(d)).Inc()
}

func (m *TriageMetrics) ObserveMoveFailure() {
	m.moveFailures.Inc()
}

func (m *TriageMetrics) MarkRunFinished(at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in text exposition format; the file is
// replaced atomically.
func (m *TriageMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
