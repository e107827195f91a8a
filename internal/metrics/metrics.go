package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// PredictionsTotal counts successful classifications by label.
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catdog",
		Subsystem: "classifier",
		Name:      "predictions_total",
		Help:      "Total number of successful predictions, labeled by predicted class.",
	}, []string{"label"})

	// FailuresTotal counts rejected or failed requests by reason.
	FailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catdog",
		Subsystem: "classifier",
		Name:      "failures_total",
		Help:      "Total number of uploads that did not produce a prediction, labeled by reason.",
	}, []string{"reason"})

	// UncertainTotal counts predictions below the configured confidence threshold.
	UncertainTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catdog",
		Subsystem: "classifier",
		Name:      "uncertain_total",
		Help:      "Total number of predictions whose confidence was below the reliability threshold.",
	})

	// InferenceDurationSeconds is the time spent inside the forward pass.
	InferenceDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catdog",
		Subsystem: "classifier",
		Name:      "inference_duration_seconds",
		Help:      "Time spent in a single forward pass, excluding decoding and normalization.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// PipelineDurationSeconds is end-to-end time from raw bytes to prediction.
	PipelineDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catdog",
		Subsystem: "classifier",
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end time to decode, normalize and classify an upload.",
		Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"result"})

	// ModelLoaded is 1 once the weights are in memory.
	ModelLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "catdog",
		Subsystem: "classifier",
		Name:      "model_loaded",
		Help:      "Whether the classifier weights are loaded.",
	})
)

// Register registers classifier metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			PredictionsTotal,
			FailuresTotal,
			UncertainTotal,
			InferenceDurationSeconds,
			PipelineDurationSeconds,
			ModelLoaded,
		)
	})
}
