package gate

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	condmetrics "github.com/openverse/conductor/pkg/metrics"
)

var (
	// Most services come up within a few poll intervals; the long tail
	// is the search backend recovering its indices.
	waitDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "conductor",
		Subsystem: "gate",
		Name:      "wait_duration_seconds",
		Help:      "Duration of readiness waits, in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300},
	}, []string{condmetrics.LabelService, condmetrics.LabelSuccess})
)
