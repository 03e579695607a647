package expand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calremind/ics"
)

const horizon30Days = 30 * 24 * time.Hour

func decode(t *testing.T, body string) []ics.VCalendar {
	t.Helper()
	cals, err := ics.Decode(body)
	require.NoError(t, err)
	return cals
}

// S1: a weekly recurring event with one attendee yields one instance per
// occurrence, each carrying that attendee.
func TestExpandWeeklyRecurrenceWithAttendee(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:weekly-1
SUMMARY:Standup
DTSTART:20240101T090000Z
RRULE:FREQ=WEEKLY;COUNT=10
ATTENDEE;CN=Alice:mailto:alice@x
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, events, 1)
	require.NotNil(t, events[0].Summary)
	assert.Equal(t, "Standup", *events[0].Summary)

	require.Len(t, instances, 5)
	wantDays := []int{1, 8, 15, 22, 29}
	for i, inst := range instances {
		assert.Equal(t, "weekly-1", inst.EventID)
		assert.Equal(t, wantDays[i], inst.Date.UTC().Day())
		assert.Equal(t, 9, inst.Date.UTC().Hour())
		require.Len(t, inst.Attendees, 1)
		assert.Equal(t, "alice@x", inst.Attendees[0].Email)
		require.NotNil(t, inst.Attendees[0].CommonName)
		assert.Equal(t, "Alice", *inst.Attendees[0].CommonName)
	}
}

// S2: an attendee who declined is dropped from every instance, while the
// other attendee remains.
func TestExpandDropsDeclinedAttendee(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:weekly-2
SUMMARY:Standup
DTSTART:20240101T090000Z
RRULE:FREQ=WEEKLY;COUNT=3
ATTENDEE;CN=Alice:mailto:alice@x
ATTENDEE;CN=Bob;PARTSTAT=DECLINED:mailto:bob@x
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, instances, 3)
	for _, inst := range instances {
		require.Len(t, inst.Attendees, 1)
		assert.Equal(t, "alice@x", inst.Attendees[0].Email)
	}
}

// S3: a full-day event produces its Event row but zero instances.
func TestExpandSkipsFullDayEvent(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:all-day
SUMMARY:Conference
DTSTART;VALUE=DATE:20240105
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, events, 1)
	assert.Equal(t, "all-day", events[0].EventID)
	assert.Empty(t, instances)
}

// Skip property: a floating event (no attached time zone) also produces
// its Event row but zero instances.
func TestExpandSkipsFloatingEvent(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:floating
SUMMARY:Planning
DTSTART:20240105T100000
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, events, 1)
	assert.Equal(t, "floating", events[0].EventID)
	assert.Empty(t, instances)
}

// S4: an unbounded daily RRULE is clipped to exactly the 30-day horizon,
// half-open [now, now+30d).
func TestExpandClipsUnboundedDailyRRuleToHorizon(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:daily
SUMMARY:Daily check-in
DTSTART:20240101T000000Z
RRULE:FREQ=DAILY
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, instances, 30)
	assert.Equal(t, 1, instances[0].Date.UTC().Day())
	assert.Equal(t, time.January, instances[0].Date.UTC().Month())
	assert.Equal(t, 30, instances[len(instances)-1].Date.UTC().Day())
	assert.Equal(t, time.January, instances[len(instances)-1].Date.UTC().Month())

	for _, inst := range instances {
		assert.False(t, inst.Date.Before(now))
		assert.True(t, inst.Date.Before(now.Add(horizon30Days)))
	}
}

// Non-mailto attendees are excluded from the attendee list entirely.
func TestExpandIgnoresNonMailtoAttendee(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:ev-1
SUMMARY:Review
DTSTART:20240101T090000Z
ATTENDEE;CN=Room:urn:uuid:some-room-resource
ATTENDEE;CN=Alice:mailto:alice@x
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, instances, 1)
	require.Len(t, instances[0].Attendees, 1)
	assert.Equal(t, "alice@x", instances[0].Attendees[0].Email)
}

// A single non-recurring event strictly before now yields no instance.
func TestExpandDropsPastNonRecurringEvent(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:past
SUMMARY:Old meeting
DTSTART:20231231T090000Z
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, instances := Expand(1, decode(t, body), now, horizon30Days)

	require.Len(t, events, 1)
	assert.Empty(t, instances)
}

// A RECURRENCE-ID override sharing the master's UID must not displace the
// master in the decoded calendar, and its ATTENDEE list must apply only to
// the one overridden occurrence (spec.md §4.3 step 3: "the effective
// event reflects overrides").
func TestExpandAppliesRecurrenceIDOverride(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:weekly-override
SUMMARY:Standup
DTSTART:20240101T090000Z
RRULE:FREQ=WEEKLY;COUNT=3
ATTENDEE;CN=Alice:mailto:alice@x
END:VEVENT
BEGIN:VEVENT
UID:weekly-override
RECURRENCE-ID:20240108T090000Z
DTSTART:20240108T100000Z
SUMMARY:Standup (moved)
ATTENDEE;CN=Bob:mailto:bob@x
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, instances := Expand(1, decode(t, body), now, horizon30Days)

	// The override must not produce a second Event row, and the master's
	// own Summary must survive (the Event row is keyed off the master,
	// not the override).
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Summary)
	assert.Equal(t, "Standup", *events[0].Summary)

	require.Len(t, instances, 3)
	assert.Equal(t, 1, instances[0].Date.UTC().Day())
	assert.Equal(t, 8, instances[1].Date.UTC().Day())
	assert.Equal(t, 15, instances[2].Date.UTC().Day())

	require.Len(t, instances[0].Attendees, 1)
	assert.Equal(t, "alice@x", instances[0].Attendees[0].Email)

	require.Len(t, instances[1].Attendees, 1)
	assert.Equal(t, "bob@x", instances[1].Attendees[0].Email)

	require.Len(t, instances[2].Attendees, 1)
	assert.Equal(t, "alice@x", instances[2].Attendees[0].Email)
}

// A zero horizon argument falls back to the 30-day default.
func TestExpandDefaultsHorizonWhenZero(t *testing.T) {
	const body = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:daily
SUMMARY:Daily check-in
DTSTART:20240101T000000Z
RRULE:FREQ=DAILY
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, instances := Expand(1, decode(t, body), now, 0)
	assert.Len(t, instances, DefaultHorizonDays)
}
