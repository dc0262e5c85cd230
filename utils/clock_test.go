package utils

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestTodayFollowsReferenceTimezone(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)

	// 20:00 UTC on June 1 is already June 2 in Bangkok.
	fake := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC))
	clock := NewReferenceClock(fake, bangkok)

	require.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), clock.Today())

	utcClock := NewReferenceClock(fake, time.UTC)
	require.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), utcClock.Today())
}

func TestEndOfDayBracketsTheReferenceDay(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	fake := clockwork.NewFakeClockAt(time.Date(2026, 6, 2, 3, 0, 0, 0, time.UTC))
	clock := NewReferenceClock(fake, bangkok)

	day := clock.Today()
	start := clock.StartOfDay(day)
	end := clock.EndOfDay(day)

	require.True(t, start.Before(end))
	require.Equal(t, day, clock.DayOf(start))
	require.Equal(t, day, clock.DayOf(end))
	require.NotEqual(t, day, clock.DayOf(end.Add(time.Nanosecond)))
}
