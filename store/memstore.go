package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"calremind/internal/model"
)

// MemStore is an in-memory Store used by tests; it keeps the same upsert +
// replace-all-instances semantics as PGStore.InsertEvents without needing a
// database.
type MemStore struct {
	mu sync.Mutex

	nextCalendarID int64
	nextReminderID int64

	calendars    map[int64]model.Calendar
	events       map[int64]map[string]model.Event
	instances    map[int64]map[string][]model.EventInstance
	reminders    map[int64]model.Reminder
	userMappings map[string]string
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		calendars:    make(map[int64]model.Calendar),
		events:       make(map[int64]map[string]model.Event),
		instances:    make(map[int64]map[string][]model.EventInstance),
		reminders:    make(map[int64]model.Reminder),
		userMappings: make(map[string]string),
	}
}

func (m *MemStore) GetCalendars(ctx context.Context) ([]model.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Calendar, 0, len(m.calendars))
	for _, c := range m.calendars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalendarID < out[j].CalendarID })
	return out, nil
}

func (m *MemStore) GetCalendarsForUser(ctx context.Context, userID int64) ([]model.Calendar, error) {
	all, _ := m.GetCalendars(ctx)
	var out []model.Calendar
	for _, c := range all {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) GetCalendar(ctx context.Context, calendarID int64) (*model.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calendars[calendarID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemStore) AddCalendar(ctx context.Context, cal model.Calendar) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCalendarID++
	cal.CalendarID = m.nextCalendarID
	m.calendars[cal.CalendarID] = cal
	return cal.CalendarID, nil
}

func (m *MemStore) UpdateCalendar(ctx context.Context, cal model.Calendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calendars[cal.CalendarID]; !ok {
		return fmt.Errorf("store: calendar %d not found", cal.CalendarID)
	}
	m.calendars[cal.CalendarID] = cal
	return nil
}

// GetEventsInCalendar returns every event in calendarID with its future
// instances attached, one per UID, sorted by the earliest future instance
// (spec.md §4.4).
func (m *MemStore) GetEventsInCalendar(ctx context.Context, calendarID int64, now time.Time) ([]model.EventWithInstances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsWithInstancesLocked(calendarID, now), nil
}

func (m *MemStore) GetEventsForUser(ctx context.Context, userID int64, now time.Time) ([]model.EventWithInstances, error) {
	m.mu.Lock()
	cals := make([]int64, 0)
	for id, c := range m.calendars {
		if c.UserID == userID {
			cals = append(cals, id)
		}
	}
	sort.Slice(cals, func(i, j int) bool { return cals[i] < cals[j] })
	defer m.mu.Unlock()

	var out []model.EventWithInstances
	for _, id := range cals {
		out = append(out, m.eventsWithInstancesLocked(id, now)...)
	}
	return out, nil
}

func (m *MemStore) GetEventInCalendar(ctx context.Context, calendarID int64, eventID string, now time.Time) (*model.EventWithInstances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[calendarID][eventID]
	if !ok {
		return nil, nil
	}
	ewi := model.EventWithInstances{Event: e, Instances: futureInstances(m.instances[calendarID][eventID], now)}
	return &ewi, nil
}

// eventsWithInstancesLocked builds the EventWithInstances rows for
// calendarID; callers must hold m.mu.
func (m *MemStore) eventsWithInstancesLocked(calendarID int64, now time.Time) []model.EventWithInstances {
	var out []model.EventWithInstances
	for uid, e := range m.events[calendarID] {
		out = append(out, model.EventWithInstances{
			Event:     e,
			Instances: futureInstances(m.instances[calendarID][uid], now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return earliestInstance(out[i]).Before(earliestInstance(out[j]))
	})
	return out
}

// futureInstances returns insts filtered to those at or after now, sorted
// by timestamp ascending (spec.md §4.4's "future instances ... ordered by
// timestamp").
func futureInstances(insts []model.EventInstance, now time.Time) []model.EventInstance {
	var out []model.EventInstance
	for _, inst := range insts {
		if inst.Date.Before(now) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// InsertEvents upserts events and replaces every instance for calendarID,
// matching PGStore's transactional semantics (spec.md §4.4, §8 property 5).
func (m *MemStore) InsertEvents(ctx context.Context, calendarID int64, events []model.Event, instances []model.EventInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.events[calendarID] == nil {
		m.events[calendarID] = make(map[string]model.Event)
	}
	for _, e := range events {
		m.events[calendarID][e.EventID] = e
	}

	byEvent := make(map[string][]model.EventInstance)
	for _, inst := range instances {
		byEvent[inst.EventID] = append(byEvent[inst.EventID], inst)
	}
	m.instances[calendarID] = byEvent

	return nil
}

func (m *MemStore) GetRemindersForEvent(ctx context.Context, calendarID int64, eventID string) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.reminders {
		if r.CalendarID == calendarID && r.EventID == eventID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReminderID < out[j].ReminderID })
	return out, nil
}

func (m *MemStore) GetReminder(ctx context.Context, reminderID int64) (*model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[reminderID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemStore) AddReminder(ctx context.Context, r model.Reminder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReminderID++
	r.ReminderID = m.nextReminderID
	m.reminders[r.ReminderID] = r
	return r.ReminderID, nil
}

func (m *MemStore) UpdateReminder(ctx context.Context, r model.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[r.ReminderID]; !ok {
		return fmt.Errorf("store: reminder %d not found", r.ReminderID)
	}
	m.reminders[r.ReminderID] = r
	return nil
}

func (m *MemStore) DeleteReminder(ctx context.Context, reminderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reminders, reminderID)
	return nil
}

// GetNextReminders mirrors PGStore.GetNextReminders: join, compute
// fire_time, drop anything already in the past, sort ascending.
func (m *MemStore) GetNextReminders(ctx context.Context, now time.Time) ([]model.ReminderInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.ReminderInstance
	for _, r := range m.reminders {
		event, ok := m.events[r.CalendarID][r.EventID]
		if !ok {
			continue
		}
		for _, inst := range m.instances[r.CalendarID][r.EventID] {
			fireTime := inst.Date.Add(-time.Duration(r.MinutesBefore) * time.Minute)
			if fireTime.Before(now) {
				continue
			}
			out = append(out, model.ReminderInstance{
				ReminderID:    r.ReminderID,
				CalendarID:    r.CalendarID,
				EventID:       r.EventID,
				Summary:       event.Summary,
				Description:   event.Description,
				Location:      event.Location,
				Template:      r.Template,
				MinutesBefore: r.MinutesBefore,
				RoomID:        r.RoomID,
				Attendees:     inst.Attendees,
				FireTime:      fireTime,
				Date:          inst.Date,
			})
		}
	}

	sortByFireTime(out)
	return out, nil
}

func (m *MemStore) GetUserMappings(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.userMappings))
	for k, v := range m.userMappings {
		out[k] = v
	}
	return out, nil
}

// SetUserMapping is a test helper; production code populates this table
// out of band (spec.md §9).
func (m *MemStore) SetUserMapping(email, matrixID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userMappings[email] = matrixID
}
