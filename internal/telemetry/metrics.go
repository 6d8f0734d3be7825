package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RowsInserted counts rows appended to each warehouse table
	RowsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvemart",
			Name:      "rows_inserted_total",
			Help:      "Total number of rows appended to warehouse tables",
		},
		[]string{"table"},
	)

	// RowsSkipped counts rows dropped as already-persisted or in-batch duplicates
	RowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvemart",
			Name:      "rows_skipped_total",
			Help:      "Total number of duplicate rows skipped during loads",
		},
		[]string{"table"},
	)

	// LoadFailures counts table loads that did not reach the inserted state
	LoadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvemart",
			Name:      "load_failures_total",
			Help:      "Total number of failed table loads",
		},
		[]string{"table"},
	)

	// VectorsDecoded counts CVSS score entries turned into fact rows
	VectorsDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvemart",
			Name:      "vectors_decoded_total",
			Help:      "Total number of CVSS vectors decoded",
		},
		[]string{"version"},
	)

	// VectorsDropped counts score entries dropped before decoding
	VectorsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvemart",
			Name:      "vectors_dropped_total",
			Help:      "Total number of CVSS score entries dropped",
		},
		[]string{"reason"},
	)

	// PipelineRuns counts completed pipeline runs by outcome
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvemart",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"outcome"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		// This prevents panics when metrics are already in the registry
		prometheus.DefaultRegisterer.Register(RowsInserted)
		prometheus.DefaultRegisterer.Register(RowsSkipped)
		prometheus.DefaultRegisterer.Register(LoadFailures)
		prometheus.DefaultRegisterer.Register(VectorsDecoded)
		prometheus.DefaultRegisterer.Register(VectorsDropped)
		prometheus.DefaultRegisterer.Register(PipelineRuns)
	})
}
