package ingest

import (
	"regexp"
	"strings"
)

var (
	abDayRe = regexp.MustCompile(`^[ab]\s+day$`)
	dayABRe = regexp.MustCompile(`^day\s+[ab]$`)
)

// IsScheduleMarker reports whether a title is a bare A/B rotation flag
// ("A Day", "day b", ...) rather than a real event. The check is applied
// per record during extraction and again as a final pass; both passes
// agree, so the second is a no-op on an already filtered list.
func IsScheduleMarker(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	switch t {
	case "a day", "b day", "day a", "day b":
		return true
	}
	return abDayRe.MatchString(t) || dayABRe.MatchString(t)
}
