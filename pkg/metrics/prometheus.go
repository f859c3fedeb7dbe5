package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus. It is the single
// Prometheus namespace for the surveillance pipeline; every stage records
// through this one recorder rather than owning private vectors.
type Recorder struct {
	snapshotsProcessed *prometheus.CounterVec
	gapsTotal          *prometheus.CounterVec
	alertsFired        *prometheus.CounterVec
	alertsResolved     *prometheus.CounterVec
	alertsEscalated    *prometheus.CounterVec
	evaluationSkips    *prometheus.CounterVec
	queueDepth         *prometheus.GaugeVec
	latency            *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		snapshotsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_snapshots_processed_total",
				Help: "Total number of normalized snapshots processed per venue/instrument",
			},
			[]string{"venue", "instrument"},
		),
		gapsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_gaps_total",
				Help: "Total number of GapMarkers emitted by reason",
			},
			[]string{"venue", "reason"},
		),
		alertsFired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_alerts_fired_total",
				Help: "Total number of alerts transitioned to active",
			},
			[]string{"alert_type", "priority"},
		),
		alertsResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_alerts_resolved_total",
				Help: "Total number of alerts transitioned to resolved",
			},
			[]string{"alert_type"},
		),
		alertsEscalated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_alerts_escalated_total",
				Help: "Total number of alerts escalated to a higher priority",
			},
			[]string{"alert_type"},
		),
		evaluationSkips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_evaluation_skips_total",
				Help: "Total number of detector evaluations that did not fire, by skip reason",
			},
			[]string{"reason"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketsentry_queue_depth",
				Help: "Current depth of an internal bounded queue or channel",
			},
			[]string{"stage"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsentry_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsentry_errors_total",
				Help: "Total number of errors encountered, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) RecordSnapshotProcessed(venue, instrument string) {
	r.snapshotsProcessed.WithLabelValues(venue, instrument).Inc()
}

func (r *Recorder) RecordGap(venue, reason string) {
	r.gapsTotal.WithLabelValues(venue, reason).Inc()
}

func (r *Recorder) RecordAlertFired(alertType string, priority string) {
	r.alertsFired.WithLabelValues(alertType, priority).Inc()
}

func (r *Recorder) RecordAlertResolved(alertType string) {
	r.alertsResolved.WithLabelValues(alertType).Inc()
}

func (r *Recorder) RecordAlertEscalated(alertType string) {
	r.alertsEscalated.WithLabelValues(alertType).Inc()
}

func (r *Recorder) RecordEvaluationSkip(reason string) {
	r.evaluationSkips.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordQueueDepth(stage string, depth int) {
	r.queueDepth.WithLabelValues(stage).Set(float64(depth))
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
