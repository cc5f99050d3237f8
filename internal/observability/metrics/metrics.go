package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "covercheck"

const (
	TriggerTemplate     = "template"
	TriggerConfirmation = "confirmation"
	TriggerAssignment   = "assignment"
	TriggerManual       = "manual"
	TriggerSweep        = "sweep"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeTimeout = "timeout"
)

// Metrics exposes compliance pipeline instruments. A nil *Metrics is a no-op
// so tests and library callers may omit it.
type Metrics struct {
	recalculations    *prometheus.CounterVec
	recalcDuration    *prometheus.HistogramVec
	statusTransitions *prometheus.CounterVec
	extractions       *prometheus.CounterVec
	extractionLatency prometheus.Histogram
	quotaDenied       *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
}

// NewRegistry returns the registry served on /metrics, preloaded with
// process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_recalculations_total",
			Help:      "Per-entity compliance recalculations by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		recalcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_duration_seconds",
			Help:      "Wall time of a recalculation cascade.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"trigger"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_status_transitions_total",
			Help:      "Entity compliance status changes.",
		}, []string{"from", "to"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction gateway calls by outcome.",
		}, []string{"outcome"}),
		extractionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Extraction gateway latency.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		}),
		quotaDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_quota_denied_total",
			Help:      "Uploads rejected by extraction quotas.",
		}, []string{"scope"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduler job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduler job wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"job"}),
	}

	for _, c := range []prometheus.Collector{
		m.recalculations, m.recalcDuration, m.statusTransitions, m.extractions,
		m.extractionLatency, m.quotaDenied, m.jobRuns, m.jobDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordRecalculation(trigger, outcome string) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(label(trigger), label(outcome)).Inc()
}

func (m *Metrics) ObserveCascade(trigger string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recalcDuration.WithLabelValues(label(trigger)).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(label(from), label(to)).Inc()
}

func (m *Metrics) RecordExtraction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(label(outcome)).Inc()
	if elapsed > 0 {
		m.extractionLatency.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RecordQuotaDenied(scope string) {
	if m == nil {
		return
	}
	m.quotaDenied.WithLabelValues(label(scope)).Inc()
}

func (m *Metrics) RecordJob(job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(label(job), label(outcome)).Inc()
	m.jobDuration.WithLabelValues(label(job)).Observe(elapsed.Seconds())
}

func label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
