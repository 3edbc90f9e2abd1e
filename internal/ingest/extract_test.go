package ingest

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractJSONBareArray(t *testing.T) {
	payload := `[{"Title": "Finals", "Start": "2025-06-10T08:00:00"}]`

	records := extractJSON([]byte(payload), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "Finals", records[0].firstString(titleKeys))
}

func TestExtractJSONWrapperKeys(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"Events", `{"Events": [{"Title": "x"}]}`},
		{"items", `{"items": [{"Title": "x"}]}`},
		{"data", `{"data": [{"Title": "x"}]}`},
		{"events", `{"events": [{"Title": "x"}]}`},
		{"Items", `{"Items": [{"Title": "x"}]}`},
		{"results", `{"results": [{"Title": "x"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := extractJSON([]byte(tc.payload), discardLogger())
			require.Len(t, records, 1)
		})
	}
}

func TestExtractJSONWrapperPriority(t *testing.T) {
	// Both keys present: the earlier key in the fixed order wins.
	payload := `{"events": [{"Title": "lower"}], "Events": [{"Title": "Upper"}]}`

	records := extractJSON([]byte(payload), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "Upper", records[0].firstString(titleKeys))
}

func TestExtractJSONBlackboardEnvelope(t *testing.T) {
	// Blackboard wraps the body under "d" and double-encodes it.
	payload := `{"d": "[{\"Title\": \"Graduation\", \"Start\": \"2025-06-12T19:00:00\"}]"}`

	records := extractJSON([]byte(payload), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "Graduation", records[0].firstString(titleKeys))
}

func TestExtractJSONDoubleEncodedTopLevel(t *testing.T) {
	payload := `"[{\"Title\": \"x\"}]"`

	records := extractJSON([]byte(payload), discardLogger())
	require.Len(t, records, 1)
}

func TestExtractJSONSkipsNonObjectItems(t *testing.T) {
	payload := `[{"Title": "keep"}, "stray", 42, null]`

	records := extractJSON([]byte(payload), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "keep", records[0].firstString(titleKeys))
}

func TestExtractJSONUndecodable(t *testing.T) {
	require.Empty(t, extractJSON([]byte("not json"), discardLogger()))
	require.Empty(t, extractJSON([]byte(`{"unrelated": true}`), discardLogger()))
}

func TestExtractRSS(t *testing.T) {
	payload := `<?xml version="1.0"?>
<rss><channel>
<item>
  <title><![CDATA[Board Meeting]]></title>
  <description>Monthly &amp; open to the public</description>
  <pubDate>Fri, 13 Jun 2025 18:00:00 GMT</pubDate>
</item>
<item>
  <title>No Date Item</title>
</item>
</channel></rss>`

	records := extractRSS([]byte(payload))
	require.Len(t, records, 2)

	require.Equal(t, "Board Meeting", records[0]["title"])
	require.Equal(t, "Monthly & open to the public", records[0]["description"])
	require.Equal(t, "Fri, 13 Jun 2025 18:00:00 GMT", records[0]["date"])

	require.Equal(t, "No Date Item", records[1]["title"])
}

func TestExtractRSSStripsMarkup(t *testing.T) {
	payload := `<item><title>Safe</title><description><![CDATA[<p>One   line</p> of <b>text</b>]]></description></item>`

	records := extractRSS([]byte(payload))
	require.Len(t, records, 1)
	require.Equal(t, "One line of text", records[0]["description"])
}

func TestRepairScriptJSON(t *testing.T) {
	raw := `[{title: 'Dance', date: new Date('2025-06-14'), open: true,}]`

	repaired := repairScriptJSON(raw)
	require.JSONEq(t, `[{"title": "Dance", "date": "2025-06-14", "open": true}]`, repaired)
}

func TestExtractHTMLScriptVariable(t *testing.T) {
	page := `<html><head><script>
var events = [{title: 'Prom', start: '5/17/2025'}];
</script></head><body></body></html>`

	records := extractHTML([]byte(page), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "Prom", records[0].firstString(titleKeys))
}

func TestExtractHTMLFullCalendar(t *testing.T) {
	page := `<script>$('#calendar').fullCalendar({header: false}, [{"title": "Assembly", "start": "2025-06-02"}]);</script>`

	records := extractHTML([]byte(page), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "Assembly", records[0].firstString(titleKeys))
}

func TestExtractHTMLDataAttribute(t *testing.T) {
	page := `<td data-event='{&quot;title&quot;: &quot;Picture Day&quot;, &quot;date&quot;: &quot;2025-09-04&quot;}'></td>`

	records := extractHTML([]byte(page), discardLogger())
	require.Len(t, records, 1)
	require.Equal(t, "Picture Day", records[0].firstString(titleKeys))
}

func TestExtractHTMLUnparseableBlockDropped(t *testing.T) {
	page := `<script>var events = [{title: function() {}}];</script>`

	require.Empty(t, extractHTML([]byte(page), discardLogger()))
}

func TestExtractICal(t *testing.T) {
	payload := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Blackboard//Calendar//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:1@example.org\r\n" +
		"SUMMARY:Spring Concert\r\n" +
		"DTSTART:20250613T180000\r\n" +
		"DESCRIPTION:Choir and band\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:2@example.org\r\n" +
		"SUMMARY:Last Day of School\r\n" +
		"DTSTART;VALUE=DATE:20250617\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	records := extractICal([]byte(payload), "", discardLogger())
	require.Len(t, records, 2)

	require.Equal(t, "Spring Concert", records[0]["title"])
	require.Equal(t, "2025-06-13", records[0]["date"])
	require.Equal(t, "18:00", records[0]["time"])
	require.Equal(t, "Choir and band", records[0]["description"])

	require.Equal(t, "Last Day of School", records[1]["title"])
	require.Equal(t, "2025-06-17", records[1]["date"])
	require.NotContains(t, records[1], "time")
}

func TestExtractICalExpandsRecurrence(t *testing.T) {
	payload := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:3@example.org\r\n" +
		"SUMMARY:Late Start\r\n" +
		"DTSTART:20250604T093000\r\n" +
		"RRULE:FREQ=WEEKLY;BYDAY=WE;COUNT=10\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	records := extractICal([]byte(payload), "2025-06", discardLogger())
	require.Len(t, records, 4)
	require.Equal(t, "2025-06-04", records[0]["date"])
	require.Equal(t, "2025-06-11", records[1]["date"])
	require.Equal(t, "2025-06-18", records[2]["date"])
	require.Equal(t, "2025-06-25", records[3]["date"])
	for _, rec := range records {
		require.Equal(t, "Late Start", rec["title"])
		require.Equal(t, "09:30", rec["time"])
	}
}

func TestExtractICalUndecodable(t *testing.T) {
	require.Empty(t, extractICal([]byte("not a calendar"), "", discardLogger()))
}
