package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The district site disagrees with itself about date shapes: the
// Blackboard JSON API returns ISO datetimes, the HTML-embedded data uses
// US slash dates, the iCal export uses compact YYYYMMDD, and RSS uses
// RFC-822. Everything funnels through NormalizeDate/NormalizeTime so the
// shapes cannot drift apart per extractor.

var (
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	compactDateRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	monthNameRe   = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),?\s+(\d{4})`)
	clockRe       = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)?`)
)

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Layouts tried last, after the structured shapes. RFC-822 style entries
// cover RSS pubDate variants with and without zero-padded days.
var genericDateLayouts = []string{
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 MST",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2006/01/02",
}

// NormalizeDate reduces a raw date string to ISO YYYY-MM-DD. It returns
// "" when no supported shape matches; callers drop such records.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// ISO datetime: the part before 'T' is the date, and a compact iCal
	// stamp like 20250613T180000 truncates to its date part. Any other
	// 'T' is not a separator (RFC-822 zone names like GMT or EST carry
	// one), so the string stays intact for the later stages.
	if i := strings.IndexByte(raw, 'T'); i > 0 {
		prefix := raw[:i]
		if isoDateRe.MatchString(prefix) {
			return prefix
		}
		if compactDateRe.MatchString(prefix) {
			raw = prefix
		}
	}

	// US slash form M/D/YYYY.
	if strings.Contains(raw, "/") {
		if d := normalizeSlashDate(raw); d != "" {
			return d
		}
	}

	// Compact iCal form YYYYMMDD.
	if m := compactDateRe.FindStringSubmatch(raw); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}

	// Prose form "June 13, 2025".
	if d := normalizeMonthNameDate(raw); d != "" {
		return d
	}

	for _, layout := range genericDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format("2006-01-02")
		}
	}

	return ""
}

func normalizeSlashDate(raw string) string {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return ""
	}

	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1000 || year > 9999 {
		return ""
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func normalizeMonthNameDate(raw string) string {
	for i, name := range monthNames {
		if !strings.Contains(raw, name) {
			continue
		}
		m := monthNameRe.FindStringSubmatch(raw)
		if m == nil {
			return ""
		}
		day, err := strconv.Atoi(m[2])
		if err != nil || day < 1 || day > 31 {
			return ""
		}
		return fmt.Sprintf("%s-%02d-%02d", m[3], i+1, day)
	}
	return ""
}

// NormalizeTime reduces a raw time string to 24-hour HH:MM. An ISO
// datetime yields its time part; otherwise H:MM with optional AM/PM is
// converted. Returns "" when nothing matches — it never guesses.
func NormalizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if i := strings.IndexByte(raw, 'T'); i >= 0 && len(raw) >= i+6 {
		part := raw[i+1:]
		if len(part) >= 5 && isClock(part[:5]) {
			return part[:5]
		}
	}

	m := clockRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}

	hours, err := strconv.Atoi(m[1])
	if err != nil || hours > 23 {
		return ""
	}
	minutes := m[2]
	if mi, err := strconv.Atoi(minutes); err != nil || mi > 59 {
		return ""
	}

	switch strings.ToUpper(m[3]) {
	case "PM":
		if hours < 12 {
			hours += 12
		}
	case "AM":
		if hours == 12 {
			hours = 0
		}
	}

	return fmt.Sprintf("%02d:%s", hours, minutes)
}

func isClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
