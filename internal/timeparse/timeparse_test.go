package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Saturday morning, so weekday expressions have an unambiguous anchor.
var now = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func TestParse_Expressions(t *testing.T) {
	tests := []struct {
		expr     string
		want     time.Time
		dateOnly bool
	}{
		{"today 14:00", time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC), false},
		{"tomorrow at 7pm", time.Date(2026, 8, 2, 19, 0, 0, 0, time.UTC), false},
		{"tomorrow at 7 pm", time.Date(2026, 8, 2, 19, 0, 0, 0, time.UTC), false},
		// No meridiem, hour 1-11: evening default.
		{"Friday 6:30", time.Date(2026, 8, 7, 18, 30, 0, 0, time.UTC), false},
		{"friday at 8 pm", time.Date(2026, 8, 7, 20, 0, 0, 0, time.UTC), false},
		{"in 2 hours", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), false},
		{"in 30 minutes", time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC), false},
		{"in 3 days", time.Date(2026, 8, 4, 10, 0, 0, 0, time.UTC), false},
		// Bare times resolve to today.
		{"19:00", time.Date(2026, 8, 1, 19, 0, 0, 0, time.UTC), false},
		{"7pm", time.Date(2026, 8, 1, 19, 0, 0, 0, time.UTC), false},
		{"9:30am", time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC), false},
		{"12pm", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), false},
		{"12am", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), false},
		// ISO-dated times read as 24-hour, no evening default.
		{"2026-08-05 06:30", time.Date(2026, 8, 5, 6, 30, 0, 0, time.UTC), false},
		{"2026-08-05 19:00", time.Date(2026, 8, 5, 19, 0, 0, 0, time.UTC), false},
		// Day with no time: DateOnly, caller substitutes the opening time.
		{"tomorrow", time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), true},
		{"friday", time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC), true},
		{"2026-08-05", time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Parse(tc.expr, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.At)
			assert.Equal(t, tc.dateOnly, got.DateOnly)
		})
	}
}

// A weekday expression whose time already passed this week rolls to the
// coming week: "saturday 9am" said on Saturday at 10:00 means next
// Saturday.
func TestParse_WeekdayAlreadyPassedRollsForward(t *testing.T) {
	got, err := Parse("saturday 9am", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 8, 9, 0, 0, 0, time.UTC), got.At)
}

func TestParse_Unrecognized(t *testing.T) {
	for _, expr := range []string{"", "whenever", "25:00", "today 14:61", "in -2 hours", "13pm"} {
		_, err := Parse(expr, now)
		assert.ErrorIs(t, err, ErrUnrecognized, "expr %q", expr)
	}
}

// Parse(Format(d)) == d at minute precision, the canonical-form round trip.
func TestFormatParseRoundTrip(t *testing.T) {
	for _, d := range []time.Time{
		time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 7, 6, 30, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC),
	} {
		got, err := Parse(Format(d), now)
		require.NoError(t, err)
		assert.Equal(t, d, got.At)
		assert.False(t, got.DateOnly)
	}
}

func TestNextOpeningAfter(t *testing.T) {
	day := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	at, err := NextOpeningAfter(day, "12:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 2, 12, 30, 0, 0, time.UTC), at)

	// Opening time already behind us today: clamp forward to now.
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	at, err = NextOpeningAfter(today, "09:00", now)
	require.NoError(t, err)
	assert.Equal(t, now, at)

	_, err = NextOpeningAfter(day, "noonish", now)
	require.Error(t, err)
}
