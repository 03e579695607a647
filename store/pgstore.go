package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calremind/internal/model"
)

// PGStore is the production Store backed by PostgreSQL via pgxpool.Pool.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// NewPGStore wraps an already-connected pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetCalendars(ctx context.Context) ([]model.Calendar, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT calendar_id, user_id, name, url, user_name, password FROM calendars`)
	if err != nil {
		return nil, fmt.Errorf("store: get calendars: %w", err)
	}
	defer rows.Close()
	return scanCalendars(rows)
}

func (s *PGStore) GetCalendarsForUser(ctx context.Context, userID int64) ([]model.Calendar, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT calendar_id, user_id, name, url, user_name, password
		 FROM calendars WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: get calendars for user: %w", err)
	}
	defer rows.Close()
	return scanCalendars(rows)
}

func scanCalendars(rows pgx.Rows) ([]model.Calendar, error) {
	var out []model.Calendar
	for rows.Next() {
		var c model.Calendar
		if err := rows.Scan(&c.CalendarID, &c.UserID, &c.Name, &c.URL, &c.UserName, &c.Password); err != nil {
			return nil, fmt.Errorf("store: scanning calendar: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) GetCalendar(ctx context.Context, calendarID int64) (*model.Calendar, error) {
	var c model.Calendar
	err := s.pool.QueryRow(ctx,
		`SELECT calendar_id, user_id, name, url, user_name, password
		 FROM calendars WHERE calendar_id = $1`, calendarID,
	).Scan(&c.CalendarID, &c.UserID, &c.Name, &c.URL, &c.UserName, &c.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get calendar: %w", err)
	}
	return &c, nil
}

func (s *PGStore) AddCalendar(ctx context.Context, cal model.Calendar) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO calendars (user_id, name, url, user_name, password)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING calendar_id`,
		cal.UserID, cal.Name, cal.URL, cal.UserName, cal.Password,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: add calendar: %w", err)
	}
	return id, nil
}

func (s *PGStore) UpdateCalendar(ctx context.Context, cal model.Calendar) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE calendars SET name = $1, url = $2, user_name = $3, password = $4
		 WHERE calendar_id = $5`,
		cal.Name, cal.URL, cal.UserName, cal.Password, cal.CalendarID,
	)
	if err != nil {
		return fmt.Errorf("store: update calendar: %w", err)
	}
	return nil
}

// GetEventsInCalendar returns every event in calendarID together with its
// future instances, one row per UID, sorted by the earliest future
// instance (spec.md §4.4). The join with next_dates is left outer so
// events with no remaining future instance are still returned, just with
// an empty Instances slice.
func (s *PGStore) GetEventsInCalendar(ctx context.Context, calendarID int64, now time.Time) ([]model.EventWithInstances, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.calendar_id, e.event_id, e.summary, e.description, e.location,
		        n.timestamp, n.attendees
		 FROM events e
		 LEFT JOIN next_dates n
		   ON n.calendar_id = e.calendar_id AND n.event_id = e.event_id AND n.timestamp >= $2
		 WHERE e.calendar_id = $1
		 ORDER BY e.event_id, n.timestamp`, calendarID, now)
	if err != nil {
		return nil, fmt.Errorf("store: get events in calendar: %w", err)
	}
	defer rows.Close()
	return scanEventsWithInstances(rows)
}

// GetEventsForUser is GetEventsInCalendar across every calendar owned by
// userID.
func (s *PGStore) GetEventsForUser(ctx context.Context, userID int64, now time.Time) ([]model.EventWithInstances, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.calendar_id, e.event_id, e.summary, e.description, e.location,
		        n.timestamp, n.attendees
		 FROM events e
		 INNER JOIN calendars c ON c.calendar_id = e.calendar_id
		 LEFT JOIN next_dates n
		   ON n.calendar_id = e.calendar_id AND n.event_id = e.event_id AND n.timestamp >= $2
		 WHERE c.user_id = $1
		 ORDER BY e.calendar_id, e.event_id, n.timestamp`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("store: get events for user: %w", err)
	}
	defer rows.Close()
	return scanEventsWithInstances(rows)
}

// scanEventsWithInstances groups the flat (event, instance?) rows of a
// left-joined query back into one EventWithInstances per UID, preserving
// the query's ORDER BY as each event's instance order, then re-sorts the
// events themselves by earliest future instance (spec.md §4.4).
func scanEventsWithInstances(rows pgx.Rows) ([]model.EventWithInstances, error) {
	type key struct {
		calendarID int64
		eventID    string
	}
	byKey := make(map[key]*model.EventWithInstances)
	var order []key

	for rows.Next() {
		var e model.Event
		var ts *time.Time
		var attendeesJSON []byte
		if err := rows.Scan(&e.CalendarID, &e.EventID, &e.Summary, &e.Description, &e.Location,
			&ts, &attendeesJSON); err != nil {
			return nil, fmt.Errorf("store: scanning event with instances: %w", err)
		}

		k := key{e.CalendarID, e.EventID}
		ewi, ok := byKey[k]
		if !ok {
			ewi = &model.EventWithInstances{Event: e}
			byKey[k] = ewi
			order = append(order, k)
		}

		if ts == nil {
			continue
		}
		attendees, err := attendeesFromJSON(attendeesJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decoding attendees for event %q: %w", e.EventID, err)
		}
		ewi.Instances = append(ewi.Instances, model.EventInstance{
			CalendarID: e.CalendarID,
			EventID:    e.EventID,
			Date:       *ts,
			Attendees:  attendees,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.EventWithInstances, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return earliestInstance(out[i]).Before(earliestInstance(out[j]))
	})
	return out, nil
}

// earliestInstance returns the zero time for events with no remaining
// future instance, so such events sort before every event that has one.
func earliestInstance(e model.EventWithInstances) time.Time {
	if len(e.Instances) == 0 {
		return time.Time{}
	}
	return e.Instances[0].Date
}

func (s *PGStore) GetEventInCalendar(ctx context.Context, calendarID int64, eventID string, now time.Time) (*model.EventWithInstances, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.calendar_id, e.event_id, e.summary, e.description, e.location,
		        n.timestamp, n.attendees
		 FROM events e
		 LEFT JOIN next_dates n
		   ON n.calendar_id = e.calendar_id AND n.event_id = e.event_id AND n.timestamp >= $3
		 WHERE e.calendar_id = $1 AND e.event_id = $2
		 ORDER BY n.timestamp`, calendarID, eventID, now)
	if err != nil {
		return nil, fmt.Errorf("store: get event in calendar: %w", err)
	}
	defer rows.Close()

	events, err := scanEventsWithInstances(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// InsertEvents upserts events and replaces every next_dates row for
// calendarID inside one transaction, mirroring
// original_source/src/database.rs's insert_events: upsert on conflict,
// delete all prior instances for the calendar, insert the fresh set,
// commit.
func (s *PGStore) InsertEvents(ctx context.Context, calendarID int64, events []model.Event, instances []model.EventInstance) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin insert events: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, event := range events {
		_, err := tx.Exec(ctx,
			`INSERT INTO events (calendar_id, event_id, summary, description, location)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (calendar_id, event_id) DO UPDATE SET
				summary = EXCLUDED.summary,
				description = EXCLUDED.description,
				location = EXCLUDED.location`,
			calendarID, event.EventID, event.Summary, event.Description, event.Location,
		)
		if err != nil {
			return fmt.Errorf("store: upsert event %q: %w", event.EventID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM next_dates WHERE calendar_id = $1`, calendarID); err != nil {
		return fmt.Errorf("store: clearing next_dates: %w", err)
	}

	for _, instance := range instances {
		_, err := tx.Exec(ctx,
			`INSERT INTO next_dates (calendar_id, event_id, timestamp, attendees)
			 VALUES ($1, $2, $3, $4)`,
			calendarID, instance.EventID, instance.Date, attendeesToJSON(instance.Attendees),
		)
		if err != nil {
			return fmt.Errorf("store: inserting next_dates for %q: %w", instance.EventID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit insert events: %w", err)
	}
	return nil
}

func (s *PGStore) GetRemindersForEvent(ctx context.Context, calendarID int64, eventID string) ([]model.Reminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT reminder_id, user_id, calendar_id, event_id, room_id, minutes_before, template
		 FROM reminders WHERE calendar_id = $1 AND event_id = $2`, calendarID, eventID)
	if err != nil {
		return nil, fmt.Errorf("store: get reminders for event: %w", err)
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		var r model.Reminder
		if err := rows.Scan(&r.ReminderID, &r.UserID, &r.CalendarID, &r.EventID, &r.RoomID, &r.MinutesBefore, &r.Template); err != nil {
			return nil, fmt.Errorf("store: scanning reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) GetReminder(ctx context.Context, reminderID int64) (*model.Reminder, error) {
	var r model.Reminder
	err := s.pool.QueryRow(ctx,
		`SELECT reminder_id, user_id, calendar_id, event_id, room_id, minutes_before, template
		 FROM reminders WHERE reminder_id = $1`, reminderID,
	).Scan(&r.ReminderID, &r.UserID, &r.CalendarID, &r.EventID, &r.RoomID, &r.MinutesBefore, &r.Template)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get reminder: %w", err)
	}
	return &r, nil
}

func (s *PGStore) AddReminder(ctx context.Context, r model.Reminder) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reminders (user_id, calendar_id, event_id, room_id, minutes_before, template)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING reminder_id`,
		r.UserID, r.CalendarID, r.EventID, r.RoomID, r.MinutesBefore, r.Template,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: add reminder: %w", err)
	}
	return id, nil
}

func (s *PGStore) UpdateReminder(ctx context.Context, r model.Reminder) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE reminders SET room_id = $1, minutes_before = $2, template = $3
		 WHERE reminder_id = $4`,
		r.RoomID, r.MinutesBefore, r.Template, r.ReminderID,
	)
	if err != nil {
		return fmt.Errorf("store: update reminder: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteReminder(ctx context.Context, reminderID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE reminder_id = $1`, reminderID)
	if err != nil {
		return fmt.Errorf("store: delete reminder: %w", err)
	}
	return nil
}

// GetNextReminders mirrors original_source/src/database.rs's
// get_next_reminders: join reminders to events and next_dates, compute
// fire_time = timestamp - minutes_before, drop anything already in the
// past, and return ordered by fire_time ascending.
func (s *PGStore) GetNextReminders(ctx context.Context, now time.Time) ([]model.ReminderInstance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.reminder_id, r.calendar_id, e.event_id, e.summary, e.description, e.location,
		        r.template, r.minutes_before, r.room_id, n.attendees, n.timestamp
		 FROM reminders r
		 INNER JOIN events e USING (calendar_id, event_id)
		 INNER JOIN next_dates n USING (calendar_id, event_id)
		 ORDER BY n.timestamp`)
	if err != nil {
		return nil, fmt.Errorf("store: get next reminders: %w", err)
	}
	defer rows.Close()

	var out []model.ReminderInstance
	for rows.Next() {
		var ri model.ReminderInstance
		var attendeesJSON []byte
		if err := rows.Scan(&ri.ReminderID, &ri.CalendarID, &ri.EventID, &ri.Summary, &ri.Description,
			&ri.Location, &ri.Template, &ri.MinutesBefore, &ri.RoomID, &attendeesJSON, &ri.Date); err != nil {
			return nil, fmt.Errorf("store: scanning reminder instance: %w", err)
		}

		attendees, err := attendeesFromJSON(attendeesJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decoding attendees for reminder %d: %w", ri.ReminderID, err)
		}
		ri.Attendees = attendees
		ri.FireTime = ri.Date.Add(-time.Duration(ri.MinutesBefore) * time.Minute)

		if ri.FireTime.Before(now) {
			continue
		}
		out = append(out, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByFireTime(out)
	return out, nil
}

func (s *PGStore) GetUserMappings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email, matrix_id FROM email_to_matrix_id`)
	if err != nil {
		return nil, fmt.Errorf("store: get user mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var email, matrixID string
		if err := rows.Scan(&email, &matrixID); err != nil {
			return nil, fmt.Errorf("store: scanning user mapping: %w", err)
		}
		out[email] = matrixID
	}
	return out, rows.Err()
}
