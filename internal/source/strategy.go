package source

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy is one method of trying to retrieve calendar data from the
// district site. Strategies are tried in order until one yields events;
// the instability of guessing undocumented endpoints stays contained in
// this list instead of leaking into the normalization code.
type Strategy struct {
	Name        string            `yaml:"name"`
	Method      string            `yaml:"method"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	ContentType string            `yaml:"content_type,omitempty"` // detector hint when the response omits one
}

type strategyFile struct {
	Strategies []Strategy `yaml:"strategies"`
}

// Load reads a strategy list from a YAML file. An empty path returns the
// built-in defaults.
func Load(path string) ([]Strategy, error) {
	if path == "" {
		return Defaults(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies: %w", err)
	}

	var f strategyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse strategies: %w", err)
	}
	if len(f.Strategies) == 0 {
		return nil, fmt.Errorf("strategies file %s lists no strategies", path)
	}

	for i := range f.Strategies {
		s := &f.Strategies[i]
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("strategy %d: name and url are required", i)
		}
		if s.Method == "" {
			s.Method = "GET"
		}
	}

	return f.Strategies, nil
}

const (
	defaultBaseURL    = "https://www.wlwv.k12.or.us"
	defaultCalendarID = "3526"
)

// Defaults mirrors the probe order that has worked against the district
// site: Blackboard JSON POST, the same endpoint as GET and as a form
// POST, the iCal export wrapper, and finally the raw month page for an
// embedded-script scan.
func Defaults() []Strategy {
	controller := defaultBaseURL + "/site/UserControls/Calendar/CalendarController.aspx/GetEvents"

	return []Strategy{
		{
			Name:   "api-post",
			Method: "POST",
			URL:    controller,
			Headers: map[string]string{
				"Content-Type":     "application/json; charset=UTF-8",
				"Accept":           "application/json, text/javascript, */*; q=0.01",
				"X-Requested-With": "XMLHttpRequest",
			},
			Body: `{"calendarId":` + defaultCalendarID + `,"startDate":"{start}","endDate":"{end}",` +
				`"templatePath":"","templateName":"","calendarName":"","culture":"en-US"}`,
			ContentType: "application/json",
		},
		{
			Name:        "api-get",
			Method:      "GET",
			URL:         controller + "?calendarId=" + defaultCalendarID + "&startDate={start_q}&endDate={end_q}",
			Headers:     map[string]string{"Accept": "application/json, text/plain, */*"},
			ContentType: "application/json",
		},
		{
			Name:   "form-post",
			Method: "POST",
			URL:    controller,
			Headers: map[string]string{
				"Content-Type": "application/x-www-form-urlencoded",
				"Accept":       "application/json",
			},
			Body:        "calendarId=" + defaultCalendarID + "&startDate={start_q}&endDate={end_q}",
			ContentType: "application/json",
		},
		{
			Name:   "ical-export",
			Method: "GET",
			URL: defaultBaseURL + "/site/UserControls/Calendar/EventExportByDateRangeWrapper.aspx" +
				"?calendarId=" + defaultCalendarID + "&startDate={start_q}&endDate={end_q}",
			ContentType: "text/calendar",
		},
		{
			Name:        "html-page",
			Method:      "GET",
			URL:         defaultBaseURL + "/Page/3071#calendar" + defaultCalendarID + "/{ym}01/month",
			Headers:     map[string]string{"Accept": "text/html,application/xhtml+xml"},
			ContentType: "text/html",
		},
	}
}

// Params carries the request window for one scrape.
type Params struct {
	Month string // YYYY-MM
}

// Expand substitutes the window placeholders into a strategy template:
// {year}, {month}, {ym}, {start}, {end} (M/D/YYYY, as Blackboard wants
// it) and the query-escaped {start_q}, {end_q}.
func (p Params) Expand(template string) (string, error) {
	t, err := time.Parse("2006-01", p.Month)
	if err != nil {
		return "", fmt.Errorf("bad month %q: %w", p.Month, err)
	}

	year, month := t.Year(), int(t.Month())
	lastDay := t.AddDate(0, 1, -1).Day()

	start := fmt.Sprintf("%d/1/%d", month, year)
	end := fmt.Sprintf("%d/%d/%d", month, lastDay, year)

	r := strings.NewReplacer(
		"{year}", fmt.Sprintf("%d", year),
		"{month}", fmt.Sprintf("%02d", month),
		"{ym}", fmt.Sprintf("%d%02d", year, month),
		"{start}", start,
		"{end}", end,
		"{start_q}", url.QueryEscape(start),
		"{end_q}", url.QueryEscape(end),
	)
	return r.Replace(template), nil
}
