package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "platform_tracker_build_info",
		Help: "Build information of the platform tracker",
	},
		[]string{"version", "commit", "date"},
	)

	SnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_tracker_snapshots_total",
		Help: "Total number of ingested updates by outcome",
	},
		[]string{"outcome"},
	)

	IngestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_tracker_ingest_errors_total",
		Help: "Total number of updates that could not be ingested",
	},
		[]string{"reason"},
	)

	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_tracker_polls_total",
		Help: "Total number of upstream polls by result",
	},
		[]string{"result"},
	)

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "platform_tracker_poll_duration_seconds",
		Help:    "Duration of one upstream poll including ingestion",
		Buckets: prometheus.DefBuckets,
	})

	SnapshotsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platform_tracker_snapshots_purged_total",
		Help: "Total number of snapshots removed by retention sweeps",
	})

	LastSweepTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "platform_tracker_last_sweep_timestamp_seconds",
		Help: "Unix time of the last successful retention sweep",
	})
)

const (
	OutcomeAppended  = "appended"
	OutcomeUnchanged = "unchanged"

	ReasonInvalid = "invalid"
	ReasonStorage = "storage"

	ResultOK    = "ok"
	ResultError = "error"
)
