package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wlwv-tools/school-calendar/backend/internal/ingest"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

func TestIsScheduleMarker(t *testing.T) {
	markers := []string{
		"A Day", "B Day", "a day", "b day",
		"Day A", "Day B", "day a", "day b",
		"  A Day  ", "a  day", "day  b",
	}
	for _, title := range markers {
		require.True(t, ingest.IsScheduleMarker(title), "expected marker: %q", title)
	}

	events := []string{
		"A Day of Service",
		"Field Day",
		"Day of the Dead Celebration",
		"AB Day",
		"Spring Concert",
		"",
	}
	for _, title := range events {
		require.False(t, ingest.IsScheduleMarker(title), "expected real event: %q", title)
	}
}

func TestFilterScheduleMarkersIsIdempotent(t *testing.T) {
	events := []models.Event{
		{School: models.SchoolWLHS, Date: "2025-06-10", Title: "A Day"},
		{School: models.SchoolWLHS, Date: "2025-06-10", Title: "Spring Concert"},
		{School: models.SchoolWLHS, Date: "2025-06-11", Title: "day b"},
	}

	once := ingest.FilterScheduleMarkers(events)
	require.Len(t, once, 1)
	require.Equal(t, "Spring Concert", once[0].Title)

	twice := ingest.FilterScheduleMarkers(once)
	require.Equal(t, once, twice)
}
