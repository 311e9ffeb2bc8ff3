package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blow_storage"

// Metrics holds the Prometheus counters, histograms, and gauges for the blow store.
type Metrics struct {
	BlowsSubmitted  prometheus.Counter
	BlowsStored     prometheus.Gauge
	Votes           *prometheus.CounterVec // labels: direction={up,down}
	TrustScores     *prometheus.CounterVec // labels: source={moderator,pipeline}
	BlowsFlagged    prometheus.Counter
	MutationErrors  *prometheus.CounterVec // labels: op
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}

	// Judge (tagging / trust scoring) metrics.
	JudgeRequests *prometheus.CounterVec   // labels: op={tags,trust}, outcome={success,error}
	JudgeCache    *prometheus.CounterVec   // labels: op={tags,trust}, result={hit,miss}
	JudgeDuration *prometheus.HistogramVec // labels: op={tags,trust}

	// Moderation pipeline metrics.
	ModerationConsumed    prometheus.Counter
	ModerationEvaluations *prometheus.CounterVec // labels: outcome={scored,flagged,skipped,error}
	ModerationBatchSize   prometheus.Histogram
	ModerationRunning     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		BlowsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blows_submitted_total",
			Help:      "Total blows accepted by submit_blow.",
		}),
		BlowsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blows_stored",
			Help:      "Number of blows currently held by the store.",
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Votes applied, by direction.",
		}, []string{"direction"}),
		TrustScores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_scores_total",
			Help:      "Trust scores written, by source.",
		}, []string{"source"}),
		BlowsFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blows_flagged_total",
			Help:      "Blows moved to the flagged state.",
		}),
		MutationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutation_errors_total",
			Help:      "Store mutations rejected by persistence, by operation.",
		}, []string{"op"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events handed to the event publisher, by outcome.",
		}, []string{"outcome"}),
		JudgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_requests_total",
			Help:      "Judge requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		JudgeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_cache_total",
			Help:      "Judge cache lookups by operation and result.",
		}, []string{"op", "result"}),
		JudgeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_duration_seconds",
			Help:      "Judge call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"op"}),
		ModerationConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_messages_consumed_total",
			Help:      "Total lifecycle events read by the moderation pipeline.",
		}),
		ModerationEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_evaluations_total",
			Help:      "Moderation pipeline outcomes per event.",
		}, []string{"outcome"}),
		ModerationBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "moderation_batch_size",
			Help:      "Number of events per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		ModerationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "moderation_running",
			Help:      "1 when the moderation pipeline is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.BlowsSubmitted,
		m.BlowsStored,
		m.Votes,
		m.TrustScores,
		m.BlowsFlagged,
		m.MutationErrors,
		m.EventsPublished,
		m.JudgeRequests,
		m.JudgeCache,
		m.JudgeDuration,
		m.ModerationConsumed,
		m.ModerationEvaluations,
		m.ModerationBatchSize,
		m.ModerationRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		BlowsSubmitted:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "blows_submitted_total"}),
		BlowsStored:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "blows_stored"}),
		Votes:                 prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "votes_total"}, []string{"direction"}),
		TrustScores:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "trust_scores_total"}, []string{"source"}),
		BlowsFlagged:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "blows_flagged_total"}),
		MutationErrors:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "store_mutation_errors_total"}, []string{"op"}),
		EventsPublished:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total"}, []string{"outcome"}),
		JudgeRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "judge_requests_total"}, []string{"op", "outcome"}),
		JudgeCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "judge_cache_total"}, []string{"op", "result"}),
		JudgeDuration:         prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "judge_duration_seconds"}, []string{"op"}),
		ModerationConsumed:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "moderation_messages_consumed_total"}),
		ModerationEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "moderation_evaluations_total"}, []string{"outcome"}),
		ModerationBatchSize:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "moderation_batch_size"}),
		ModerationRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "moderation_running"}),
	}
}
