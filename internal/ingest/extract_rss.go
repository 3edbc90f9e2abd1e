package ingest

import (
	"html"
	"regexp"
	"strings"
)

var (
	itemRe    = regexp.MustCompile(`(?s)<item[^>]*>(.*?)</item>`)
	rssTags   = map[string]*regexp.Regexp{}
	cdataRe   = regexp.MustCompile(`(?s)^\s*<!\[CDATA\[(.*?)\]\]>\s*$`)
	tagStrip  = regexp.MustCompile(`<[^>]+>`)
	spaceColl = regexp.MustCompile(`\s+`)
)

func init() {
	for _, tag := range []string{"title", "description", "pubDate"} {
		rssTags[tag] = regexp.MustCompile(`(?s)<` + tag + `[^>]*>(.*?)</` + tag + `>`)
	}
}

// extractRSS pulls raw records out of an RSS/XML payload, one per <item>.
// Both CDATA-wrapped and entity-escaped tag content are supported; the
// pubDate doubles as the date and (when it carries a clock) the time
// candidate.
func extractRSS(payload []byte) []RawRecord {
	items := itemRe.FindAllStringSubmatch(string(payload), -1)
	records := make([]RawRecord, 0, len(items))

	for _, item := range items {
		rec := RawRecord{}
		if v := rssText(item[1], "title"); v != "" {
			rec["title"] = v
		}
		if v := rssText(item[1], "description"); v != "" {
			rec["description"] = v
		}
		if v := rssText(item[1], "pubDate"); v != "" {
			rec["date"] = v
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

func rssText(item, tag string) string {
	m := rssTags[tag].FindStringSubmatch(item)
	if m == nil {
		return ""
	}
	text := m[1]
	if c := cdataRe.FindStringSubmatch(text); c != nil {
		text = c[1]
	} else {
		text = html.UnescapeString(text)
	}
	text = tagStrip.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaceColl.ReplaceAllString(text, " "))
}
