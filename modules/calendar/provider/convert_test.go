package provider

import (
	"testing"
	"time"

	sessionEntity "coach-sync-api/modules/session/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestConvertSessionToEvent_NewYorkRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := map[string]time.Time{
		"standard time": time.Date(2025, 1, 15, 17, 30, 0, 0, time.UTC),
		"daylight time": time.Date(2025, 7, 15, 17, 30, 0, 0, time.UTC),
		"dst boundary":  time.Date(2025, 3, 9, 6, 30, 0, 0, time.UTC),
	}

	for name, start := range cases {
		t.Run(name, func(t *testing.T) {
			session := &sessionEntity.Session{StartTime: start, DurationMinutes: 90}
			ev := ConvertSessionToEvent(session, EventTemplate{}, loc)

			require.Equal(t, "America/New_York", ev.TimeZone)

			gotStart, err := ParseWallClock(ev.Start, ev.TimeZone)
			require.NoError(t, err)
			gotEnd, err := ParseWallClock(ev.End, ev.TimeZone)
			require.NoError(t, err)

			assert.True(t, gotStart.Equal(start), "start %s != %s", gotStart, start)
			assert.True(t, gotEnd.Equal(start.Add(90*time.Minute)), "end %s", gotEnd)
		})
	}
}

func TestConvertSessionToEvent_WallClockIsCalendarLocal(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	session := &sessionEntity.Session{StartTime: time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC), DurationMinutes: 60}
	ev := ConvertSessionToEvent(session, EventTemplate{}, loc)

	assert.Equal(t, "2025-01-15T12:00:00", ev.Start)
	assert.Equal(t, "2025-01-15T13:00:00", ev.End)
}

func TestConvertSessionToEvent_TitleAndDescription(t *testing.T) {
	session := &sessionEntity.Session{
		StartTime:       time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		ClientFirstName: "Ada",
		ClientLastName:  "Lovelace",
		ClientEmail:     "ada@example.com",
		Notes:           strPtr("Bring the quarterly plan"),
		Location:        strPtr("Zoom"),
	}

	withClient := ConvertSessionToEvent(session, EventTemplate{
		Title:                "Coaching",
		Description:          strPtr("Booked via the coaching app"),
		IncludeClientDetails: true,
	}, nil)
	assert.Equal(t, "Coaching - Ada Lovelace", withClient.Title)
	assert.Contains(t, withClient.Description, "Booked via the coaching app")
	assert.Contains(t, withClient.Description, "ada@example.com")
	assert.Contains(t, withClient.Description, "Bring the quarterly plan")
	assert.Equal(t, "Zoom", withClient.Location)
	assert.Equal(t, "UTC", withClient.TimeZone)

	private := ConvertSessionToEvent(session, EventTemplate{}, nil)
	assert.Equal(t, "Coaching Session", private.Title)
	assert.NotContains(t, private.Description, "ada@example.com")
	assert.Equal(t, "Bring the quarterly plan", private.Description)
}
