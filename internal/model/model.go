// Package model holds the domain entities shared by every layer of the
// ingestion-and-reminder pipeline: calendars, events, their materialised
// instances, and the reminders configured against them.
package model

import "time"

// Calendar is a remote CalDAV source registered by a user.
type Calendar struct {
	CalendarID int64
	UserID     int64
	Name       string
	URL        string
	UserName   *string
	Password   *string
}

// BasicAuth reports whether the calendar carries HTTP Basic credentials and
// returns them.
func (c Calendar) BasicAuth() (user, pass string, ok bool) {
	if c.UserName == nil || *c.UserName == "" {
		return "", "", false
	}
	user = *c.UserName
	if c.Password != nil {
		pass = *c.Password
	}
	return user, pass, true
}

// Event is the stable identity of a calendar entry, keyed on the
// iCalendar UID within its calendar.
type Event struct {
	CalendarID  int64
	EventID     string
	Summary     *string
	Description *string
	Location    *string
}

// Attendee is a mailto: participant of an event instance who has not
// declined.
type Attendee struct {
	Email      string
	CommonName *string
}

// EventInstance is one materialised future occurrence of an Event.
type EventInstance struct {
	CalendarID int64
	EventID    string
	Date       time.Time
	Attendees  []Attendee
}

// EventWithInstances pairs an Event with its future instances, the shape
// get_events_in_calendar / get_event_in_calendar return (spec.md §4.4):
// one event per UID, instances ordered by timestamp ascending, past
// instances already filtered out.
type EventWithInstances struct {
	Event
	Instances []EventInstance
}

// Reminder is a user-configured rule firing minutes_before ahead of every
// future instance of (CalendarID, EventID).
type Reminder struct {
	ReminderID     int64
	UserID         int64
	CalendarID     int64
	EventID        string
	RoomID         string
	MinutesBefore  int64
	Template       *string
}

// ReminderInstance is a transient join of a Reminder with a concrete
// upcoming EventInstance, never persisted.
type ReminderInstance struct {
	ReminderID    int64
	CalendarID    int64
	EventID       string
	Summary       *string
	Description   *string
	Location      *string
	Template      *string
	MinutesBefore int64
	RoomID        string
	Attendees     []Attendee
	// FireTime is Date - MinutesBefore, the wall-clock moment this
	// instance should be dispatched.
	FireTime time.Time
	// Date is the underlying event instance's timestamp.
	Date time.Time
}

// UserMapping resolves an attendee email to a chat-transport user id.
type UserMapping struct {
	Email    string
	MatrixID string
}
