package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_tree_loads_total",
		Help: "Node loads by result (loaded, failed, discarded)",
	}, []string{"result"})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_tree_mutations_total",
		Help: "Mutating operations by name and result",
	}, []string{"op", "result"})

	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_tree_render_flushes_total",
		Help: "Render flushes by mode (full, partial, empty)",
	}, []string{"mode"})

	regeneratedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_tree_regenerated_nodes",
		Help:    "Nodes regenerated per render flush",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	backgroundParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_tree_background_parse_duration_seconds",
		Help:    "Time spent decoding and parsing a payload off the owner goroutine",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	backgroundFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_tree_background_fallbacks_total",
		Help: "Background parses that fell back to synchronous parsing",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_tree_errors_total",
		Help: "Errors reported through the error hook by kind",
	}, []string{"kind"})
)
