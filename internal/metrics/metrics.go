package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the metrics of a single cleaning run.
type Registry struct {
	reg              *prometheus.Registry
	RowsProcessed    *prometheus.CounterVec
	NullsFilled      *prometheus.CounterVec
	DatesUnparseable *prometheus.CounterVec
	MissingEstimate  prometheus.Counter
	RunDurationSec   prometheus.Gauge
	RunSuccess       prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewRegistry creates the collectors for one run on a private registry
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olist_rows_processed_total",
		Help: "Rows written per dataset.",
	}, []string{"dataset"})
	nulls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olist_nulls_filled_total",
		Help: "Null cells replaced per dataset and column.",
	}, []string{"dataset", "column"})
	dates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olist_dates_unparseable_total",
		Help: "Non-empty order dates that could not be parsed.",
	}, []string{"column"})
	missing := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "olist_orders_missing_estimate_total",
		Help: "Delivered orders without an estimated delivery date.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{Name: "olist_run_duration_seconds"})
	success := prometheus.NewGauge(prometheus.GaugeOpts{Name: "olist_run_success"})
	last := prometheus.NewGauge(prometheus.GaugeOpts{Name: "olist_last_run_timestamp_seconds"})

	r.MustRegister(rows, nulls, dates, missing, duration, success, last)
	return &Registry{
		reg:              r,
		RowsProcessed:    rows,
		NullsFilled:      nulls,
		DatesUnparseable: dates,
		MissingEstimate:  missing,
		RunDurationSec:   duration,
		RunSuccess:       success,
		LastRunTimestamp: last,
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every metric in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
