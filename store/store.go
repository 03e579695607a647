// Package store implements the Persistence Layer (spec.md §4.4): calendars,
// their events and upcoming instances, configured reminders, and the
// email-to-chat-user mapping table.
//
// Store is the seam every other package programs against; PGStore is the
// github.com/jackc/pgx/v5-backed production implementation, grounded on
// original_source/src/database.rs's Database translated from
// tokio_postgres/bb8 to pgxpool, with the concrete call shapes
// (pool.Begin/tx.Exec/tx.Commit, db.QueryRow(...).Scan(...)) grounded on
// artpromedia-email's calendar repository package.
package store

import (
	"context"
	"time"

	"calremind/internal/model"
)

// Store is every operation the sync loop, scheduler and an external
// admin/API layer need against the persisted calendar/reminder state.
type Store interface {
	GetCalendars(ctx context.Context) ([]model.Calendar, error)
	GetCalendarsForUser(ctx context.Context, userID int64) ([]model.Calendar, error)
	GetCalendar(ctx context.Context, calendarID int64) (*model.Calendar, error)
	AddCalendar(ctx context.Context, cal model.Calendar) (int64, error)
	UpdateCalendar(ctx context.Context, cal model.Calendar) error

	// GetEventsInCalendar and GetEventsForUser return one row per UID,
	// each carrying its future instances (past ones excluded), sorted by
	// the earliest future instance (spec.md §4.4).
	GetEventsInCalendar(ctx context.Context, calendarID int64, now time.Time) ([]model.EventWithInstances, error)
	GetEventsForUser(ctx context.Context, userID int64, now time.Time) ([]model.EventWithInstances, error)
	// GetEventInCalendar returns a single event with its future instances
	// ordered by timestamp ascending (spec.md §4.4).
	GetEventInCalendar(ctx context.Context, calendarID int64, eventID string, now time.Time) (*model.EventWithInstances, error)

	// InsertEvents atomically upserts events and replaces every instance
	// row for calendarID, per spec.md §4.4's replace semantics.
	InsertEvents(ctx context.Context, calendarID int64, events []model.Event, instances []model.EventInstance) error

	GetRemindersForEvent(ctx context.Context, calendarID int64, eventID string) ([]model.Reminder, error)
	GetReminder(ctx context.Context, reminderID int64) (*model.Reminder, error)
	AddReminder(ctx context.Context, r model.Reminder) (int64, error)
	UpdateReminder(ctx context.Context, r model.Reminder) error
	DeleteReminder(ctx context.Context, reminderID int64) error

	// GetNextReminders returns every future (fire_time, ReminderInstance)
	// pair ordered by fire_time ascending, with past fire times already
	// excluded (spec.md §4.4, §8 property 6).
	GetNextReminders(ctx context.Context, now time.Time) ([]model.ReminderInstance, error)

	// GetUserMappings returns the full email -> chat user id table, keyed
	// by email for O(1) lookup at dispatch time. The source's BTreeMap
	// iterates in sorted order; dispatch.Sink only ever looks up single
	// emails and never iterates the whole table, so that ordering
	// guarantee has no consumer here and isn't reproduced.
	GetUserMappings(ctx context.Context) (map[string]string, error)
}
