package ingest

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Known shapes the district site uses to embed event data inside pages:
// plain JS variable assignments, fullCalendar-style initializers, and
// data-event attributes on calendar cells.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)var\s+events\s*=\s*(\[.*?\])\s*;`),
	regexp.MustCompile(`(?s)var\s+eventData\s*=\s*(\[.*?\])\s*;`),
	regexp.MustCompile(`(?s)var\s+calendarEvents\s*=\s*(\[.*?\])\s*;`),
	regexp.MustCompile(`(?s)\.fullCalendar\([^,]*,\s*(\[.*?\])\s*\)`),
	regexp.MustCompile(`(?s)events\s*:\s*(\[.*?\])`),
}

var dataEventRe = regexp.MustCompile(`data-events?=['"]([^'"]+)['"]`)

var (
	newDateRe      = regexp.MustCompile(`new Date\(([^)]*)\)`)
	unquotedKeyRe  = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailObjComma  = regexp.MustCompile(`,\s*}`)
	trailListComma = regexp.MustCompile(`,\s*]`)
)

// extractHTML scans a page for embedded quasi-JSON event data. Each
// candidate block is repaired best-effort before parsing; a block that
// still will not parse is logged and dropped, never fatal. This runs for
// any payload the detector could not classify.
func extractHTML(payload []byte, log *slog.Logger) []RawRecord {
	page := string(payload)
	var records []RawRecord

	for _, pattern := range scriptPatterns {
		for _, m := range pattern.FindAllStringSubmatch(page, -1) {
			recs := parseEmbedded(repairScriptJSON(m[1]), log)
			if len(recs) == 0 {
				continue
			}
			records = append(records, recs...)
		}
	}

	for _, m := range dataEventRe.FindAllStringSubmatch(page, -1) {
		raw := strings.ReplaceAll(m[1], "&quot;", `"`)
		records = append(records, parseEmbedded(raw, log)...)
	}

	return records
}

func parseEmbedded(raw string, log *slog.Logger) []RawRecord {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		log.Debug("embedded block not parseable after repair", slog.Any("err", err))
		return nil
	}
	if m, ok := value.(map[string]any); ok {
		// A single data-event object is itself a record.
		if recs := recordsFromValue(m, log, 0); recs != nil {
			return recs
		}
		return []RawRecord{RawRecord(m)}
	}
	return recordsFromValue(value, log, 0)
}

// repairScriptJSON turns the common JS-literal quirks into valid JSON:
// new Date(...) calls, single quotes, unquoted keys, trailing commas.
// The repair is lossy; failures are tolerated per block.
func repairScriptJSON(raw string) string {
	raw = newDateRe.ReplaceAllStringFunc(raw, func(call string) string {
		inner := newDateRe.FindStringSubmatch(call)[1]
		return `"` + strings.Trim(inner, `'" `) + `"`
	})
	raw = strings.ReplaceAll(raw, "'", `"`)
	raw = unquotedKeyRe.ReplaceAllString(raw, `$1"$2":`)
	raw = trailObjComma.ReplaceAllString(raw, "}")
	raw = trailListComma.ReplaceAllString(raw, "]")
	return raw
}
