package ingest

import (
	"bytes"
	"log/slog"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// Recurrence expansion is capped per event; a district calendar month
// never legitimately needs more.
const maxOccurrencesPerEvent = 62

// extractICal pulls raw records out of an iCal payload, one per VEVENT
// occurrence. Recurring events (RRULE) are expanded into the target
// month when one is given; without a month only the base occurrence is
// kept. A VEVENT that fails to parse is skipped, never fatal.
func extractICal(payload []byte, month string, log *slog.Logger) []RawRecord {
	cal, err := ical.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		log.Debug("ical payload undecodable", slog.Any("err", err))
		return nil
	}

	var records []RawRecord
	for _, ve := range cal.Events() {
		recs, err := recordsFromVEvent(ve, month)
		if err != nil {
			log.Debug("skipping vevent", slog.Any("err", err))
			continue
		}
		records = append(records, recs...)
	}
	return records
}

func recordsFromVEvent(ve *ical.VEvent, month string) ([]RawRecord, error) {
	start, err := ve.GetStartAt()
	if err != nil {
		// Date-only DTSTART (all-day events).
		if start, err = ve.GetAllDayStartAt(); err != nil {
			return nil, err
		}
	}

	var summary, description, rawRule string
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRule = p.Value
	}

	allDay := false
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
		if !strings.Contains(p.Value, "T") {
			allDay = true
		}
	}

	starts := []time.Time{start}
	if rawRule != "" && month != "" {
		if expanded, err := expandRule(rawRule, start, month); err == nil {
			starts = expanded
		}
	}

	records := make([]RawRecord, 0, len(starts))
	for _, s := range starts {
		rec := RawRecord{
			"title":       summary,
			"date":        s.Format("2006-01-02"),
			"description": description,
		}
		if !allDay {
			rec["time"] = s.Format("15:04")
		}
		records = append(records, rec)
	}
	return records, nil
}

// expandRule returns the occurrence start times inside the YYYY-MM month
// window, in the event's own location.
func expandRule(rawRule string, start time.Time, month string) ([]time.Time, error) {
	monthStart, err := time.ParseInLocation("2006-01", month, start.Location())
	if err != nil {
		return nil, err
	}
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Second)

	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)

	occ := set.Between(monthStart, monthEnd, true)
	if len(occ) > maxOccurrencesPerEvent {
		occ = occ[:maxOccurrencesPerEvent]
	}
	return occ, nil
}
