package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wlwv-tools/school-calendar/backend/internal/dedupe"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

func TestCacheSeenDuplicate(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("wlhs|2025-06-13|Spring Concert"))
	cache.MarkSeen("wlhs|2025-06-13|Spring Concert")
	require.True(t, cache.IsSeen("wlhs|2025-06-13|Spring Concert"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := dedupe.NewCache(10, 20*time.Millisecond)
	cache.MarkSeen("wvhs|2025-06-02|Finals")
	time.Sleep(25 * time.Millisecond)
	require.False(t, cache.IsSeen("wvhs|2025-06-02|Finals"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	cache.MarkSeen("first")
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
}

func TestCacheEventKey(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	ev := models.Event{School: models.SchoolWLHS, Date: "2025-06-13", Title: "Spring Concert"}

	require.False(t, cache.SeenEvent(ev))
	cache.MarkEvent(ev)
	require.True(t, cache.SeenEvent(ev))

	// Byte-exact keys: trailing whitespace makes a different event.
	ev.Title = "Spring Concert "
	require.False(t, cache.SeenEvent(ev))
}
