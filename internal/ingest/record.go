package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

// RawRecord is one loosely-typed source item before normalization. The
// extractors all produce this shape so one set of field rules covers
// every format.
type RawRecord map[string]any

// Alternate key spellings per field, first non-empty wins. Order
// matters: the Blackboard API spellings come first, then the shapes seen
// in embedded HTML data. Supporting a new source spelling is an append
// here, not new branching code.
var (
	titleKeys = []string{"Title", "EventTitle", "Subject", "title", "name", "summary", "Summary", "Name", "subject", "eventTitle"}
	dateKeys  = []string{"Start", "StartDate", "EventDate", "Date", "start", "date", "startDate", "eventDate", "start_date"}
	timeKeys  = []string{"StartTime", "Time", "startTime", "time", "start_time"}
	descKeys  = []string{"Description", "Body", "desc", "description", "Details", "details", "body"}
)

func (r RawRecord) firstString(keys []string) string {
	for _, k := range keys {
		if s := stringify(r[k]); s != "" {
			return s
		}
	}
	return ""
}

// dateCandidate is firstString over the date keys, with numeric epoch
// values (seen in fullCalendar-style embedded data) converted to a date.
func (r RawRecord) dateCandidate() string {
	for _, k := range dateKeys {
		switch v := r[k].(type) {
		case nil:
			continue
		case float64:
			if ts := epochToTime(v); !ts.IsZero() {
				return ts.UTC().Format("2006-01-02T15:04:05")
			}
		default:
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func epochToTime(v float64) time.Time {
	switch {
	case v > 1e12: // milliseconds
		return time.UnixMilli(int64(v))
	case v > 1e9: // seconds
		return time.Unix(int64(v), 0)
	default:
		return time.Time{}
	}
}

// buildEvent normalizes one raw record into a canonical event. A record
// with no resolvable title or date is never materialized.
func buildEvent(rec RawRecord, school models.School, department string) (models.Event, bool) {
	title := strings.TrimSpace(rec.firstString(titleKeys))
	if title == "" {
		return models.Event{}, false
	}

	rawDate := rec.dateCandidate()
	date := NormalizeDate(rawDate)
	if date == "" {
		return models.Event{}, false
	}

	// No dedicated time field: an ISO datetime in the date field still
	// carries one.
	eventTime := NormalizeTime(rec.firstString(timeKeys))
	if eventTime == "" {
		eventTime = NormalizeTime(rawDate)
	}

	return models.Event{
		School:      school,
		Date:        date,
		Time:        eventTime,
		Title:       title,
		Department:  department,
		Description: strings.TrimSpace(rec.firstString(descKeys)),
	}, true
}
