package orders

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Terminal(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusCart, false},
		{StatusAccepted, false},
		{StatusOngoing, false},
		{StatusReady, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
		{StatusRejected, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.Terminal(), "status %q", tc.status)
	}
}

func TestNextStatusForConfirm(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name         string
		scheduledFor sql.NullTime
		want         Status
	}{
		{
			name:         "unset scheduled_for is always accepted",
			scheduledFor: sql.NullTime{},
			want:         StatusAccepted,
		},
		{
			name:         "exactly now+5m is ongoing",
			scheduledFor: sql.NullTime{Valid: true, Time: now.Add(5 * time.Minute)},
			want:         StatusOngoing,
		},
		{
			name:         "one millisecond past now+5m is accepted",
			scheduledFor: sql.NullTime{Valid: true, Time: now.Add(5*time.Minute + time.Millisecond)},
			want:         StatusAccepted,
		},
		{
			name:         "already due is ongoing",
			scheduledFor: sql.NullTime{Valid: true, Time: now.Add(-time.Minute)},
			want:         StatusOngoing,
		},
		{
			name:         "far in the future is accepted",
			scheduledFor: sql.NullTime{Valid: true, Time: now.Add(2 * time.Hour)},
			want:         StatusAccepted,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nextStatusForConfirm(tc.scheduledFor, now))
		})
	}
}

func TestCancellationDeadlinePassed(t *testing.T) {
	reference := time.Date(2026, 7, 31, 18, 0, 0, 0, time.UTC)
	hours := 2

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{
			name: "exactly at the deadline is still allowed",
			now:  reference.Add(-2 * time.Hour),
			want: false,
		},
		{
			name: "one second past the deadline is denied",
			now:  reference.Add(-2*time.Hour + time.Second),
			want: true,
		},
		{
			name: "well before the deadline is allowed",
			now:  reference.Add(-3 * time.Hour),
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cancellationDeadlinePassed(reference, hours, tc.now))
		})
	}
}
