package lifecycle

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	condmetrics "github.com/openverse/conductor/pkg/metrics"
)

var (
	// Most of a job's time is spent waiting on the remote ingest; the
	// buckets run long accordingly.
	jobDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "conductor",
		Subsystem: "lifecycle",
		Name:      "job_duration_seconds",
		Help:      "Duration of lifecycle job execution, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{condmetrics.LabelAction, condmetrics.LabelSuccess})

	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "conductor",
		Subsystem: "lifecycle",
		Name:      "queue_length_count",
		Help:      "Count of jobs waiting in a model's queue to be run.",
	}, []string{condmetrics.LabelModel})
)
