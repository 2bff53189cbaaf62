// Package metrics exposes Prometheus collectors for the analytics engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomePartial labels analyses whose results could not all be stored.
	OutcomePartial = "partial"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"
)

const namespace = "pulse"

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Correlation analyses run, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_seconds",
			Help:      "Correlation analysis latency in seconds, including input fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	patternsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_upserted_total",
			Help:      "Patterns written by discovery, partitioned by pattern type.",
		},
		[]string{"pattern_type"},
	)

	triggersFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_fired_total",
			Help:      "Pattern triggers fired, partitioned by severity.",
		},
		[]string{"severity"},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions generated, partitioned by prediction type and status.",
		},
		[]string{"prediction_type", "status"},
	)

	storageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Persistence failures surfaced to callers, partitioned by operation.",
		},
		[]string{"operation"},
	)
)

// Register attaches the pulse collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		patternsUpsertedTotal,
		triggersFiredTotal,
		predictionsTotal,
		storageFailuresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// PatternUpserted counts a discovery write.
func PatternUpserted(patternType string) {
	patternsUpsertedTotal.WithLabelValues(patternType).Inc()
}

// TriggerFired counts a fired trigger.
func TriggerFired(severity string) {
	triggersFiredTotal.WithLabelValues(severity).Inc()
}

// PredictionCreated counts a generated prediction.
func PredictionCreated(predictionType, status string) {
	predictionsTotal.WithLabelValues(predictionType, status).Inc()
}

// StorageFailure counts a persistence failure.
func StorageFailure(operation string) {
	storageFailuresTotal.WithLabelValues(operation).Inc()
}
