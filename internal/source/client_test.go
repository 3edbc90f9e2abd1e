package source_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wlwv-tools/school-calendar/backend/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchExpandsAndPosts(t *testing.T) {
	var gotPath, gotBody, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"d": "[]"}`))
	}))
	defer ts.Close()

	client := source.NewClient(5*time.Second, testLogger())
	st := source.Strategy{
		Name:    "api-post",
		Method:  "POST",
		URL:     ts.URL + "/GetEvents?y={year}",
		Headers: map[string]string{"Accept": "application/json"},
		Body:    `{"startDate":"{start}","endDate":"{end}"}`,
	}

	payload, err := client.Fetch(context.Background(), st, source.Params{Month: "2025-06"})
	require.NoError(t, err)

	require.Equal(t, "/GetEvents?y=2025", gotPath)
	require.Equal(t, `{"startDate":"6/1/2025","endDate":"6/30/2025"}`, gotBody)
	require.Equal(t, "application/json", gotAccept)

	require.Equal(t, http.StatusOK, payload.Status)
	require.Equal(t, "application/json", payload.ContentType)
	require.Equal(t, `{"d": "[]"}`, string(payload.Body))
}

func TestFetchNon2xxIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := source.NewClient(5*time.Second, testLogger())
	st := source.Strategy{Name: "api-get", Method: "GET", URL: ts.URL}

	_, err := client.Fetch(context.Background(), st, source.Params{Month: "2025-06"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

func TestFetchContentTypeFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Type header on the response.
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("BEGIN:VCALENDAR\nEND:VCALENDAR"))
	}))
	defer ts.Close()

	client := source.NewClient(5*time.Second, testLogger())
	st := source.Strategy{Name: "ical-export", URL: ts.URL, ContentType: "text/calendar"}

	payload, err := client.Fetch(context.Background(), st, source.Params{Month: "2025-06"})
	require.NoError(t, err)
	require.Equal(t, "text/calendar", payload.ContentType)
}

func TestFetchBadMonth(t *testing.T) {
	client := source.NewClient(5*time.Second, testLogger())
	st := source.Strategy{Name: "api-get", URL: "http://example.org/{ym}"}

	_, err := client.Fetch(context.Background(), st, source.Params{Month: "bad"})
	require.Error(t, err)
}
