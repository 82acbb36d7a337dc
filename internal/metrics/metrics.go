// Package metrics provides Prometheus metrics for the recognition pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dactilo"

// Frame outcomes used as the "outcome" label of FramesTotal.
const (
	OutcomeHand     = "hand"
	OutcomeNoHand   = "no_hand"
	OutcomeNotReady = "not_ready"
	OutcomeInvalid  = "invalid"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Frame metrics
	FramesTotal  *prometheus.CounterVec
	FrameLatency prometheus.Histogram
	FrameErrors  prometheus.Counter

	// Recognition metrics
	Predictions      *prometheus.CounterVec
	LettersEmitted   prometheus.Counter
	WordsEmitted     prometheus.Counter
	WordsSuppressed  prometheus.Counter
	ShortcutsEmitted *prometheus.CounterVec

	// Dataset metrics
	DatasetSamples prometheus.Gauge
	StoreOps       *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge

	// Output metrics
	PluginRuns     *prometheus.CounterVec
	PublishTotal   *prometheus.CounterVec
	PublishLatency prometheus.Histogram
	EventsDropped  *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry() to stay isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of frames processed, by outcome",
		}, []string{"outcome"}),
		FrameLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_latency_seconds",
			Help:      "Time spent processing one frame through the pipeline",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		FrameErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Total number of frame source errors",
		}),

		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Classifier predictions, by whether they reached the confidence threshold",
		}, []string{"result"}),
		LettersEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "letters_emitted_total",
			Help:      "Total number of stabilized letters emitted",
		}),
		WordsEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_emitted_total",
			Help:      "Total number of words emitted",
		}),
		WordsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_suppressed_total",
			Help:      "Total number of duplicate words suppressed inside the cooldown",
		}),
		ShortcutsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortcuts_emitted_total",
			Help:      "Total number of shortcut gestures emitted",
		}, []string{"label"}),

		DatasetSamples: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_samples",
			Help:      "Number of training samples in the classifier",
		}),
		StoreOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Dataset persistence operations, by operation and result",
		}, []string{"op", "result"}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of running recognition sessions",
		}),

		PluginRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_runs_total",
			Help:      "Plugin action executions, by plugin and result",
		}, []string{"plugin", "result"}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Events published to the message broker, by kind and result",
		}, []string{"kind", "result"}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Broker publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a downstream queue was full",
		}, []string{"queue"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordFrame records one processed frame.
func (m *Metrics) RecordFrame(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(outcome).Inc()
	m.FrameLatency.Observe(seconds)
}

// RecordFrameError records a frame source error.
func (m *Metrics) RecordFrameError() {
	if m == nil {
		return
	}
	m.FrameErrors.Inc()
}

// RecordPrediction records whether a prediction met the confidence threshold.
func (m *Metrics) RecordPrediction(confident bool) {
	if m == nil {
		return
	}
	if confident {
		m.Predictions.WithLabelValues("confident").Inc()
	} else {
		m.Predictions.WithLabelValues("below_threshold").Inc()
	}
}

// RecordLetter records an emitted letter.
func (m *Metrics) RecordLetter() {
	if m == nil {
		return
	}
	m.LettersEmitted.Inc()
}

// RecordWord records a word flush.
func (m *Metrics) RecordWord(suppressed bool) {
	if m == nil {
		return
	}
	if suppressed {
		m.WordsSuppressed.Inc()
		return
	}
	m.WordsEmitted.Inc()
}

// RecordShortcut records an emitted shortcut.
func (m *Metrics) RecordShortcut(label string) {
	if m == nil {
		return
	}
	m.ShortcutsEmitted.WithLabelValues(label).Inc()
}

// SetDatasetSize updates the dataset gauge.
func (m *Metrics) SetDatasetSize(n int) {
	if m == nil {
		return
	}
	m.DatasetSamples.Set(float64(n))
}

// RecordStoreOp records a dataset save, load or reset.
func (m *Metrics) RecordStoreOp(op string, err error) {
	if m == nil {
		return
	}
	m.StoreOps.WithLabelValues(op, result(err)).Inc()
}

// RecordSessionStart records a session starting.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session stopping.
func (m *Metrics) RecordSessionEnd() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordPluginRun records a plugin execution.
func (m *Metrics) RecordPluginRun(plugin string, err error) {
	if m == nil {
		return
	}
	m.PluginRuns.WithLabelValues(plugin, result(err)).Inc()
}

// RecordPublish records a broker publish attempt.
func (m *Metrics) RecordPublish(kind string, err error, seconds float64) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(kind, result(err)).Inc()
	m.PublishLatency.Observe(seconds)
}

// RecordDropped records an event dropped from a full queue.
func (m *Metrics) RecordDropped(queue string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(queue).Inc()
}
