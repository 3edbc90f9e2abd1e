package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wlwv-tools/school-calendar/backend/internal/source"
)

func TestParamsExpand(t *testing.T) {
	p := source.Params{Month: "2025-06"}

	cases := []struct {
		template string
		want     string
	}{
		{"{year}", "2025"},
		{"{month}", "06"},
		{"{ym}", "202506"},
		{"{start}", "6/1/2025"},
		{"{end}", "6/30/2025"},
		{"{start_q}", "6%2F1%2F2025"},
		{"{end_q}", "6%2F30%2F2025"},
		{"no placeholders", "no placeholders"},
		{"?startDate={start_q}&endDate={end_q}", "?startDate=6%2F1%2F2025&endDate=6%2F30%2F2025"},
	}

	for _, tc := range cases {
		got, err := p.Expand(tc.template)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestParamsExpandMonthLengths(t *testing.T) {
	feb := source.Params{Month: "2024-02"}
	got, err := feb.Expand("{end}")
	require.NoError(t, err)
	require.Equal(t, "2/29/2024", got)

	dec := source.Params{Month: "2025-12"}
	got, err = dec.Expand("{end}")
	require.NoError(t, err)
	require.Equal(t, "12/31/2025", got)
}

func TestParamsExpandBadMonth(t *testing.T) {
	_, err := source.Params{Month: "June 2025"}.Expand("{year}")
	require.Error(t, err)

	_, err = source.Params{Month: ""}.Expand("{year}")
	require.Error(t, err)
}

func TestDefaultsOrder(t *testing.T) {
	strategies := source.Defaults()
	require.Len(t, strategies, 5)

	names := make([]string, 0, len(strategies))
	for _, st := range strategies {
		names = append(names, st.Name)
	}
	require.Equal(t, []string{"api-post", "api-get", "form-post", "ical-export", "html-page"}, names)

	require.Equal(t, "POST", strategies[0].Method)
	require.Contains(t, strategies[0].Body, "{start}")
	require.Equal(t, "text/calendar", strategies[3].ContentType)
	require.Equal(t, "text/html", strategies[4].ContentType)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	strategies, err := source.Load("")
	require.NoError(t, err)
	require.Equal(t, source.Defaults(), strategies)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	data := `strategies:
  - name: custom-api
    method: POST
    url: https://example.org/api
    headers:
      Content-Type: application/json
    body: '{"startDate":"{start}"}'
    content_type: application/json
  - name: custom-page
    url: https://example.org/page
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	strategies, err := source.Load(path)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	require.Equal(t, "custom-api", strategies[0].Name)
	require.Equal(t, "POST", strategies[0].Method)
	require.Equal(t, "application/json", strategies[0].Headers["Content-Type"])
	require.Equal(t, "application/json", strategies[0].ContentType)

	// Method defaults to GET when omitted.
	require.Equal(t, "GET", strategies[1].Method)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	missingName := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(missingName, []byte("strategies:\n  - url: https://example.org\n"), 0o644))
	_, err := source.Load(missingName)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("strategies: []\n"), 0o644))
	_, err = source.Load(empty)
	require.Error(t, err)

	_, err = source.Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.Error(t, err)
}
