package metrics

import "github.com/prometheus/client_golang/prometheus"

// One counter per pipeline outcome plus attempt-level strategy counters.
// Registered on the default registry; the api and worker binaries expose
// it via promhttp.

var (
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolcal",
		Name:      "pipeline_runs_total",
		Help:      "Pipeline invocations by school and mode (commit or fetch-only)",
	}, []string{"school", "mode"})

	EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolcal",
		Name:      "events_processed_total",
		Help:      "Normalized events surviving the filter stage",
	}, []string{"school"})

	EventsInserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolcal",
		Name:      "events_inserted_total",
		Help:      "Events newly committed to the store",
	}, []string{"school"})

	EventsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolcal",
		Name:      "events_skipped_total",
		Help:      "Events skipped because the store already had the key",
	}, []string{"school"})

	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolcal",
		Name:      "store_errors_total",
		Help:      "Per-record store failures recorded on reports",
	}, []string{"school"})

	StrategyAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolcal",
		Name:      "strategy_attempts_total",
		Help:      "Source strategy attempts by outcome",
	}, []string{"strategy", "outcome"})

	RunDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "schoolcal",
		Name:      "pipeline_run_seconds",
		Help:      "Time spent in one pipeline run",
	})
)

func init() {
	prometheus.MustRegister(
		PipelineRuns,
		EventsProcessed,
		EventsInserted,
		EventsSkipped,
		StoreErrors,
		StrategyAttempts,
		RunDuration,
	)
}
