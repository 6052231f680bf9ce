package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RecordsMatched counts records claimed by accepted results, by side
// and match type.
var RecordsMatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recon_records_matched_total",
		Help: "Total records claimed by accepted match results",
	},
	[]string{"side", "match_type"},
)

// RecordsUnmatched counts records left unmatched after all strategies.
var RecordsUnmatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recon_records_unmatched_total",
		Help: "Total records left unmatched after a run",
	},
	[]string{"side"},
)

// DuplicatesFlagged counts suspected duplicate annotations by side.
var DuplicatesFlagged = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recon_duplicates_flagged_total",
		Help: "Total records flagged as suspected duplicates",
	},
	[]string{"side"},
)

// RunWarnings counts non-fatal run warnings by kind.
var RunWarnings = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recon_run_warnings_total",
		Help: "Total non-fatal warnings emitted by runs",
	},
	[]string{"kind"},
)

// RunDuration records end-to-end reconciliation run latency.
var RunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "recon_run_duration_seconds",
		Help:    "Latency in seconds of complete reconciliation runs",
		Buckets: prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(RecordsMatched, RecordsUnmatched, DuplicatesFlagged, RunWarnings, RunDuration)
}
