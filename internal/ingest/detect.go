package ingest

import (
	"bytes"
	"strings"
)

// Format classifies a raw payload.
type Format int

const (
	// FormatUnknown still gets a best-effort HTML-embedded scan; the
	// district site likes to bury event data inside script tags.
	FormatUnknown Format = iota
	FormatJSON
	FormatICal
	FormatRSS
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatICal:
		return "ical"
	case FormatRSS:
		return "rss"
	default:
		return "unknown"
	}
}

// Detect classifies a payload from its declared content type and a sniff
// of the body. It never fails; unrecognized payloads flow through as
// FormatUnknown rather than aborting the request.
func Detect(payload []byte, contentType string) Format {
	ct := strings.ToLower(contentType)
	trimmed := bytes.TrimSpace(payload)

	if strings.Contains(ct, "calendar") || bytes.HasPrefix(trimmed, []byte("BEGIN:VCALENDAR")) {
		return FormatICal
	}

	if strings.Contains(ct, "json") || bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("[")) {
		return FormatJSON
	}

	if bytes.Contains(trimmed, []byte("<item>")) || bytes.Contains(trimmed, []byte("<item ")) {
		return FormatRSS
	}

	return FormatUnknown
}
