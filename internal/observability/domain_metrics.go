package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CompileOutcomeOK       = "ok"
	CompileOutcomeRejected = "rejected"
)

var (
	filterCompilationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablelens_filter_compilations_total",
			Help: "Total number of filter compilations by outcome.",
		},
		[]string{"outcome"},
	)
	filterRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablelens_filter_rejections_total",
			Help: "Total number of rejected filter requests by reason.",
		},
		[]string{"reason"},
	)
	browseLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablelens_browse_latency_ms",
			Help:    "Latency of executed browse queries in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	browseRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablelens_browse_rows",
			Help:    "Number of rows returned per browse query.",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablelens_exports_total",
			Help: "Total number of export attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		filterCompilationsTotal,
		filterRejectionsTotal,
		browseLatencyMs,
		browseRows,
		exportsTotal,
	)
}

func ObserveCompilation(rejectReason string) {
	if rejectReason == "" {
		filterCompilationsTotal.WithLabelValues(CompileOutcomeOK).Inc()
		return
	}
	filterCompilationsTotal.WithLabelValues(CompileOutcomeRejected).Inc()
	filterRejectionsTotal.WithLabelValues(rejectReason).Inc()
}

func ObserveBrowse(rows int, elapsed time.Duration) {
	browseLatencyMs.Observe(float64(elapsed.Milliseconds()))
	browseRows.Observe(float64(rows))
}

func ObserveExport(err error) {
	if err != nil {
		exportsTotal.WithLabelValues("error").Inc()
		return
	}
	exportsTotal.WithLabelValues("ok").Inc()
}
