package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wlwv-tools/school-calendar/backend/internal/dedupe"
	"github.com/wlwv-tools/school-calendar/backend/internal/metrics"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
	"github.com/wlwv-tools/school-calendar/backend/internal/source"
)

// EventStore is the only store surface the pipeline needs. Rows are
// append-only from the pipeline's point of view.
type EventStore interface {
	ExistsEvent(ctx context.Context, school models.School, date, title string) (bool, error)
	InsertEvent(ctx context.Context, ev models.Event) (string, error)
}

// Input describes one pipeline invocation.
type Input struct {
	Payload     []byte
	ContentType string
	School      models.School
	Department  string
	Month       string // YYYY-MM; when set, events outside the month are dropped
	FetchOnly   bool   // normalize and return without touching the store
}

// RecordError is one per-record store failure. Field names match the
// response body the frontend already consumes.
type RecordError struct {
	Event  string `json:"event"`
	Reason string `json:"error"`
}

// Attempt records the outcome of one source strategy try.
type Attempt struct {
	Strategy string `json:"strategy"`
	Outcome  string `json:"outcome"`
}

// Report is the per-run result, serializable directly as a response
// body. Processed counts normalized events after filtering and in-batch
// dedup; Inserted+Skipped+len(Errors) always equals Processed on a
// committing run.
type Report struct {
	Month     string         `json:"month"`
	Processed int            `json:"processed"`
	Inserted  int            `json:"inserted"`
	Skipped   int            `json:"skipped"`
	Errors    []RecordError  `json:"errors"`
	Events    []models.Event `json:"events"`
	Attempts  []Attempt      `json:"attempts,omitempty"`
}

// Runner drives one payload through detect, extract, normalize, filter,
// dedup and insert. It keeps no state between runs; the optional cache
// only short-circuits store lookups for keys committed recently.
type Runner struct {
	store EventStore
	cache *dedupe.Cache
	log   *slog.Logger
}

// NewRunner builds a runner. store may be nil for fetch-only use; cache
// may be nil to always consult the store.
func NewRunner(store EventStore, cache *dedupe.Cache, log *slog.Logger) *Runner {
	return &Runner{store: store, cache: cache, log: log}
}

// Run executes the pipeline over one raw payload.
func (r *Runner) Run(ctx context.Context, in Input) *Report {
	events := r.normalize(in)
	return r.commit(ctx, in, events)
}

// RunStrategies tries each source strategy in order and commits the
// first one that yields a non-empty normalized event list. Attempt-level
// failures are recorded on the report, never raised: the caller always
// gets a report describing what happened.
func (r *Runner) RunStrategies(ctx context.Context, client *source.Client, strategies []source.Strategy, in Input) *Report {
	attempts := make([]Attempt, 0, len(strategies))
	params := source.Params{Month: in.Month}

	for _, st := range strategies {
		payload, err := client.Fetch(ctx, st, params)
		if err != nil {
			r.log.Warn("strategy failed", slog.String("strategy", st.Name), slog.Any("err", err))
			metrics.StrategyAttempts.WithLabelValues(st.Name, "transport_error").Inc()
			attempts = append(attempts, Attempt{Strategy: st.Name, Outcome: err.Error()})
			continue
		}

		in.Payload = payload.Body
		in.ContentType = payload.ContentType

		events := r.normalize(in)
		if len(events) == 0 {
			metrics.StrategyAttempts.WithLabelValues(st.Name, "no_events").Inc()
			attempts = append(attempts, Attempt{Strategy: st.Name, Outcome: "no events"})
			continue
		}

		// First success wins; later strategies are not merged in.
		metrics.StrategyAttempts.WithLabelValues(st.Name, "events").Inc()
		attempts = append(attempts, Attempt{Strategy: st.Name, Outcome: "events"})
		report := r.commit(ctx, in, events)
		report.Attempts = attempts
		return report
	}

	return &Report{
		Month:    in.Month,
		Errors:   []RecordError{},
		Events:   []models.Event{},
		Attempts: attempts,
	}
}

// normalize runs detect -> extract -> build -> filter -> in-batch dedup.
func (r *Runner) normalize(in Input) []models.Event {
	format := Detect(in.Payload, in.ContentType)

	var records []RawRecord
	switch format {
	case FormatJSON:
		records = extractJSON(in.Payload, r.log)
	case FormatICal:
		records = extractICal(in.Payload, in.Month, r.log)
	case FormatRSS:
		records = extractRSS(in.Payload)
	default:
		// Unrecognized payloads still get the embedded-script scan.
		records = extractHTML(in.Payload, r.log)
	}

	r.log.Debug("extracted records",
		slog.String("format", format.String()),
		slog.Int("count", len(records)),
	)

	seen := make(map[string]struct{}, len(records))
	events := make([]models.Event, 0, len(records))

	for _, rec := range records {
		ev, ok := buildEvent(rec, in.School, in.Department)
		if !ok {
			// No resolvable date or title: dropped, visible only as
			// processed < raw record count.
			continue
		}
		if IsScheduleMarker(ev.Title) {
			r.log.Debug("dropping schedule marker", slog.String("title", ev.Title))
			continue
		}
		if in.Month != "" && !strings.HasPrefix(ev.Date, in.Month) {
			continue
		}
		if _, dup := seen[ev.Key()]; dup {
			continue
		}
		seen[ev.Key()] = struct{}{}
		events = append(events, ev)
	}

	return FilterScheduleMarkers(events)
}

// FilterScheduleMarkers is the final filter pass. The per-record pass
// already removed markers, so this is idempotent on its input.
func FilterScheduleMarkers(events []models.Event) []models.Event {
	out := events[:0]
	for _, ev := range events {
		if !IsScheduleMarker(ev.Title) {
			out = append(out, ev)
		}
	}
	return out
}

// commit runs the sequential dedup/insert loop. Dedup correctness
// depends on checking the store before each insert, so the loop is
// never parallelized.
func (r *Runner) commit(ctx context.Context, in Input, events []models.Event) *Report {
	timer := prometheus.NewTimer(metrics.RunDuration)
	defer timer.ObserveDuration()

	report := &Report{
		Month:     in.Month,
		Processed: len(events),
		Errors:    []RecordError{},
		Events:    events,
	}

	school := string(in.School)
	metrics.EventsProcessed.WithLabelValues(school).Add(float64(len(events)))

	if in.FetchOnly || r.store == nil {
		metrics.PipelineRuns.WithLabelValues(school, "fetch_only").Inc()
		return report
	}
	metrics.PipelineRuns.WithLabelValues(school, "commit").Inc()

	for _, ev := range events {
		if r.cache != nil && r.cache.SeenEvent(ev) {
			report.Skipped++
			metrics.EventsSkipped.WithLabelValues(school).Inc()
			continue
		}

		exists, err := r.store.ExistsEvent(ctx, ev.School, ev.Date, ev.Title)
		if err != nil {
			report.Errors = append(report.Errors, RecordError{Event: ev.Title, Reason: err.Error()})
			metrics.StoreErrors.WithLabelValues(school).Inc()
			continue
		}
		if exists {
			report.Skipped++
			metrics.EventsSkipped.WithLabelValues(school).Inc()
			if r.cache != nil {
				r.cache.MarkEvent(ev)
			}
			continue
		}

		if _, err := r.store.InsertEvent(ctx, ev); err != nil {
			report.Errors = append(report.Errors, RecordError{Event: ev.Title, Reason: err.Error()})
			metrics.StoreErrors.WithLabelValues(school).Inc()
			continue
		}

		report.Inserted++
		metrics.EventsInserted.WithLabelValues(school).Inc()
		if r.cache != nil {
			r.cache.MarkEvent(ev)
		}
	}

	r.log.Info("pipeline run complete",
		slog.String("school", school),
		slog.String("month", in.Month),
		slog.Int("processed", report.Processed),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)),
	)

	return report
}
