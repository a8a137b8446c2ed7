package overlay

import (
	"github.com/prometheus/client_golang/prometheus"

	"overlayd/internal/completion"
	"overlayd/internal/manager"
)

// Skip reasons recorded when a selection is not submitted.
const (
	SkipNoFeatures    = "no_features"
	SkipModelNotReady = "model_not_ready"
)

var allStates = []manager.State{
	manager.StateUnavailable,
	manager.StateDownloading,
	manager.StateLoading,
	manager.StateReady,
	manager.StateUnloading,
}

// metrics are the pipeline collectors of one Overlay.
type metrics struct {
	selections prometheus.Counter
	skipped    *prometheus.CounterVec
	submitted  prometheus.Counter
	results    *prometheus.CounterVec
	modelState *prometheus.GaugeVec
	inference  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, stale func() float64) *metrics {
	m := &metrics{
		selections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "pipeline",
			Name:      "selection_events_total",
			Help:      "Selection changes observed by the monitor",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "pipeline",
			Name:      "skipped_total",
			Help:      "Selections not submitted for completion, by reason",
		}, []string{"reason"}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "pipeline",
			Name:      "submitted_total",
			Help:      "Completion requests submitted to the queue",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlayd",
			Subsystem: "pipeline",
			Name:      "results_total",
			Help:      "Completion results delivered, by outcome",
		}, []string{"outcome"}),
		modelState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "overlayd",
			Subsystem: "model",
			Name:      "state",
			Help:      "1 for the current model lifecycle state, 0 otherwise",
		}, []string{"state"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "overlayd",
			Subsystem: "model",
			Name:      "inference_duration_seconds",
			Help:      "Duration of model inference calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	staleFn := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "overlayd",
		Subsystem: "pipeline",
		Name:      "stale_total",
		Help:      "Requests superseded by a newer one before producing a result",
	}, stale)
	reg.MustRegister(m.selections, m.skipped, m.submitted, m.results, m.modelState, m.inference, staleFn)
	return m
}

func (m *metrics) setState(s manager.State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.modelState.WithLabelValues(string(st)).Set(v)
	}
}

func (m *metrics) observeResult(res completion.Result) {
	outcome := string(res.Kind)
	if res.Err == nil {
		outcome = "ok"
	}
	m.results.WithLabelValues(outcome).Inc()
}
