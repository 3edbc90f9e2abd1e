package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wlwv-tools/school-calendar/backend/internal/ingest"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name        string
		payload     string
		contentType string
		want        ingest.Format
	}{
		{"json content type", "odd body", "application/json", ingest.FormatJSON},
		{"json content type with charset", "odd body", "application/json; charset=utf-8", ingest.FormatJSON},
		{"json object body", `{"d": "[]"}`, "", ingest.FormatJSON},
		{"json array body", `[{"Title": "x"}]`, "", ingest.FormatJSON},
		{"json leading whitespace", "\n\t [1]", "", ingest.FormatJSON},
		{"ical content type", "odd body", "text/calendar", ingest.FormatICal},
		{"ical body", "BEGIN:VCALENDAR\nEND:VCALENDAR", "text/html", ingest.FormatICal},
		{"rss items", "<rss><channel><item><title>x</title></item></channel></rss>", "", ingest.FormatRSS},
		{"rss item with attrs", `<channel><item id="1"></item></channel>`, "", ingest.FormatRSS},
		{"html page", "<html><body>hi</body></html>", "text/html", ingest.FormatUnknown},
		{"empty", "", "", ingest.FormatUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ingest.Detect([]byte(tc.payload), tc.contentType))
		})
	}
}

func TestFormatString(t *testing.T) {
	require.Equal(t, "json", ingest.FormatJSON.String())
	require.Equal(t, "ical", ingest.FormatICal.String())
	require.Equal(t, "rss", ingest.FormatRSS.String())
	require.Equal(t, "unknown", ingest.FormatUnknown.String())
}
