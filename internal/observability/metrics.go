package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus registry and the floppy meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	BytesProcessed    *prometheus.CounterVec
	Uploads           *prometheus.CounterVec
	Sweeps            *prometheus.CounterVec
	Evictions         prometheus.Counter
	SweepEntryErrors  prometheus.Counter
}

// NewMetrics creates a private registry with the standard floppy metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "floppy_operation_duration_seconds",
		Help:    "Duration of storage operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floppy_operation_total",
		Help: "Total number of storage operations.",
	}, []string{"operation", "status"})

	bytesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floppy_bytes_processed_total",
		Help: "Total payload bytes written or served.",
	}, []string{"direction"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floppy_uploads_total",
		Help: "Uploads by outcome.",
	}, []string{"result"})

	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floppy_sweeps_total",
		Help: "Retention sweeps by outcome.",
	}, []string{"result"})

	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "floppy_evictions_total",
		Help: "Blobs reclaimed by retention sweeps.",
	})

	entryErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "floppy_sweep_entry_errors_total",
		Help: "Entries skipped during a sweep because they could not be evaluated or removed.",
	})

	reg.MustRegister(opDuration, opTotal, bytesProcessed, uploads, sweeps, evictions, entryErrors)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		BytesProcessed:    bytesProcessed,
		Uploads:           uploads,
		Sweeps:            sweeps,
		Evictions:         evictions,
		SweepEntryErrors:  entryErrors,
	}
}
