package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	NAMESPACE = "ns_sentinel"
)

var (
	PacketsAggregated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "packets_aggregated_total",
			Help:      "Packets attributed to a flow of the live window.",
			Namespace: NAMESPACE,
		},
	)
	CaptureDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "capture_dropped_total",
			Help:      "Capture lines or packets dropped because they could not be parsed.",
			Namespace: NAMESPACE,
		},
		[]string{"source"},
	)
	WindowsFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "windows_flushed_total",
			Help:      "Aggregation windows flushed, including empty ones.",
			Namespace: NAMESPACE,
		},
	)
	FlowsFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "flows_flushed_total",
			Help:      "Flows contained in flushed windows.",
			Namespace: NAMESPACE,
		},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:      "queue_depth",
			Help:      "Jobs waiting for the scoring worker.",
			Namespace: NAMESPACE,
		},
	)
	EventsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "events_scored_total",
			Help:      "Scored events by prediction.",
			Namespace: NAMESPACE,
		},
		[]string{"prediction"},
	)
	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:      "scoring_duration_seconds",
			Help:      "Time spent encoding and scoring one job.",
			Namespace: NAMESPACE,
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
	LogAppendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "log_append_failures_total",
			Help:      "Scored events that could not be appended to the event log.",
			Namespace: NAMESPACE,
		},
	)
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:      "subscribers",
			Help:      "Currently registered stream subscribers.",
			Namespace: NAMESPACE,
		},
	)
	SubscribersEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "subscribers_evicted_total",
			Help:      "Subscribers removed after a failed send.",
			Namespace: NAMESPACE,
		},
	)
	ModelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:      "model_loaded",
			Help:      "1 when a scoring bundle is loaded.",
			Namespace: NAMESPACE,
		},
	)
)

func init() {
	prometheus.MustRegister(PacketsAggregated)
	prometheus.MustRegister(CaptureDropped)
	prometheus.MustRegister(WindowsFlushed)
	prometheus.MustRegister(FlowsFlushed)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(EventsScored)
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(LogAppendFailures)
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(SubscribersEvicted)
	prometheus.MustRegister(ModelLoaded)
}
